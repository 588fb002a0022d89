// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/charithmadhuranga/fledge/pkg/reading"
)

// Sink is the storage collaborator the drain thread hands completed
// batches to. Implementations correspond to Engine.AppendReadings.
type Sink interface {
	AppendReadings(ctx context.Context, readings []reading.Reading) error
}

// Queue is the bounded, multi-producer / single-drain-consumer buffer
// described for the ingest hot path. It deliberately uses a mutex and
// condition variable rather than a channel: the drain thread needs to
// wake on either a size threshold or a wall-clock deadline, and needs to
// swap the whole producer-facing buffer out atomically rather than drain
// it element by element.
type Queue struct {
	qMutex    sync.Mutex
	cond      *sync.Cond
	queue     []reading.Reading
	running   bool
	threshold int
	timeout   time.Duration

	pipelineMutex sync.Mutex
	pipeline      *Pipeline

	sink  Sink
	stats *Stats

	discarded int64

	drainDone chan struct{}
}

// NewQueue constructs a Queue bound to sink, with the given threshold and
// timeout. Call Run to launch the drain thread.
func NewQueue(sink Sink, stats *Stats, threshold int, timeout time.Duration) *Queue {
	q := &Queue{
		running:   true,
		threshold: threshold,
		timeout:   timeout,
		pipeline:  NewPipeline(nil),
		sink:      sink,
		stats:     stats,
		drainDone: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.qMutex)
	return q
}

// Ingest queues a single reading. It fails fast (returns false) if the
// queue is shutting down, in which case the rejected reading is counted as
// discarded in the queue's Stats.
func (q *Queue) Ingest(r reading.Reading) bool {
	return q.IngestBatch([]reading.Reading{r})
}

// IngestBatch queues a batch of readings atomically; see Ingest.
func (q *Queue) IngestBatch(readings []reading.Reading) bool {
	q.qMutex.Lock()
	if !q.running {
		q.qMutex.Unlock()
		q.stats.RecordDiscarded(int64(len(readings)))
		return false
	}
	q.queue = append(q.queue, readings...)
	crossedThreshold := len(q.queue) >= q.threshold
	q.qMutex.Unlock()
	if crossedThreshold {
		q.cond.Signal()
	}
	return true
}

// QueueLength is an observational estimate of the producer-facing queue's
// current size. It takes the lock briefly and never blocks a producer for
// longer than that.
func (q *Queue) QueueLength() int {
	q.qMutex.Lock()
	defer q.qMutex.Unlock()
	return len(q.queue)
}

// Run drives the drain loop until Shutdown is called; it is intended to be
// launched on its own goroutine. Run returns once the final batch (if any)
// has been processed.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.drainDone)
	for {
		data, shuttingDown := q.waitForBatch()
		if len(data) > 0 {
			q.processBatch(ctx, data)
		}
		if shuttingDown {
			return
		}
	}
}

// waitForBatch blocks until the queue has crossed threshold, the timeout
// elapses, or shutdown is requested, then swaps out the producer-facing
// buffer and returns the drain-owned copy. A single deadline timer wakes
// the condition variable if neither a threshold crossing nor shutdown
// happens first; it is stopped before returning so it never fires spuriously
// into the next cycle.
func (q *Queue) waitForBatch() ([]reading.Reading, bool) {
	deadline := time.Now().Add(q.timeout)
	timer := time.AfterFunc(q.timeout, q.cond.Broadcast)
	defer timer.Stop()

	q.qMutex.Lock()
	defer q.qMutex.Unlock()

	for len(q.queue) < q.threshold && q.running && time.Now().Before(deadline) {
		q.cond.Wait()
	}

	data := q.queue
	q.queue = nil
	return data, !q.running
}

// processBatch runs the (possibly empty) filter pipeline on data and hands
// the result to storage, recording stats or discards as appropriate.
func (q *Queue) processBatch(ctx context.Context, data []reading.Reading) {
	q.pipelineMutex.Lock()
	pipeline := q.pipeline
	q.pipelineMutex.Unlock()

	toPersist := pipeline.Run(data)
	if len(toPersist) == 0 {
		return
	}
	if err := q.sink.AppendReadings(ctx, toPersist); err != nil {
		q.stats.RecordDiscarded(int64(len(toPersist)))
		return
	}
	perAsset := make(map[string]int64)
	for _, r := range toPersist {
		perAsset[r.AssetCode()]++
	}
	for assetCode, n := range perAsset {
		q.stats.Record(assetCode, n)
	}
}

// Shutdown marks the queue as stopping and wakes the drain thread so it can
// complete its current/final batch and exit. It blocks until the drain
// goroutine launched by Run has returned.
func (q *Queue) Shutdown() {
	q.qMutex.Lock()
	q.running = false
	q.qMutex.Unlock()
	q.cond.Broadcast()
	<-q.drainDone
}

// Reconfigure swaps in a new filter pipeline. It acquires pipelineMutex
// first and qMutex second — the fixed lock order producers and the drain
// loop also honour — so it can never deadlock against a producer or the
// drain thread waiting on the condition variable. The outgoing pipeline's
// stages are closed in reverse order after the swap.
func (q *Queue) Reconfigure(newPipeline *Pipeline) {
	q.pipelineMutex.Lock()
	defer q.pipelineMutex.Unlock()

	q.qMutex.Lock()
	pending := q.queue
	q.queue = nil
	q.qMutex.Unlock()

	if len(pending) > 0 {
		leftover := q.pipeline.Run(pending)
		if len(leftover) > 0 {
			_ = q.sink.AppendReadings(context.Background(), leftover)
		}
	}

	old := q.pipeline
	q.pipeline = newPipeline
	old.Close()
}
