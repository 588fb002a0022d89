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
	"testing"
	"time"

	"github.com/charithmadhuranga/fledge/pkg/reading"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]reading.Reading
	fail    bool
}

func (f *fakeSink) AppendReadings(_ context.Context, readings []reading.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	cp := append([]reading.Reading(nil), readings...)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestQueue_DrainsByThreshold(t *testing.T) {
	sink := &fakeSink{}
	stats := NewStats()
	q := NewQueue(sink, stats, 5, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	for i := 0; i < 5; i++ {
		q.Ingest(mustReading(t, "A1"))
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sink.total() == 5 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if sink.total() != 5 {
		t.Fatalf("expected threshold-triggered drain of 5, got %d", sink.total())
	}
	q.Shutdown()
}

func TestQueue_DrainsByTimeout(t *testing.T) {
	sink := &fakeSink{}
	stats := NewStats()
	q := NewQueue(sink, stats, 1000, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Ingest(mustReading(t, "A1"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sink.total() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if sink.total() != 1 {
		t.Fatalf("expected timeout-triggered drain of 1, got %d", sink.total())
	}
	q.Shutdown()
}

func TestQueue_RejectsAfterShutdown(t *testing.T) {
	sink := &fakeSink{}
	stats := NewStats()
	q := NewQueue(sink, stats, 10, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	q.Shutdown()

	if ok := q.Ingest(mustReading(t, "A1")); ok {
		t.Fatalf("expected Ingest to fail fast after shutdown")
	}
	if snap := stats.Snapshot(); snap.Discarded != 1 {
		t.Fatalf("expected discarded counter to increment, got %d", snap.Discarded)
	}
}

func TestQueue_FinalFlushOnShutdown(t *testing.T) {
	sink := &fakeSink{}
	stats := NewStats()
	q := NewQueue(sink, stats, 1000, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Ingest(mustReading(t, "A1"))
	q.Ingest(mustReading(t, "A2"))
	q.Shutdown()

	if sink.total() != 2 {
		t.Fatalf("expected final flush to persist both readings, got %d", sink.total())
	}
}
