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

// Package ingest implements the south-side readings queue: a bounded
// condition-variable buffer, a configurable filter pipeline, and the
// per-asset/global counters the housekeeping loop flushes to storage.
package ingest

import (
	"sync"
	"sync/atomic"
)

// assetCounter tracks the readings seen for one asset code. It is published
// into a sync.Map keyed by asset code, mirroring the fast-path Load-before-
// allocate pattern used elsewhere for high-frequency per-key counters.
type assetCounter struct {
	count int64
}

// Stats accumulates global and per-asset reading counts between flushes to
// the statistics table. All counters are lock-free; Snapshot copies the
// per-asset map by ranging over it without taking a lock.
type Stats struct {
	perAsset  sync.Map // string -> *assetCounter
	readings  int64
	discarded int64
}

// NewStats returns an empty Stats accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// Record increments the global and per-asset reading counters by n.
func (s *Stats) Record(assetCode string, n int64) {
	atomic.AddInt64(&s.readings, n)
	s.counterFor(assetCode).add(n)
}

// RecordDiscarded increments the global discarded-readings counter; it is
// not broken out per-asset, matching the documented statistics surface.
func (s *Stats) RecordDiscarded(n int64) {
	atomic.AddInt64(&s.discarded, n)
}

func (s *Stats) counterFor(assetCode string) *assetCounter {
	if actual, ok := s.perAsset.Load(assetCode); ok {
		return actual.(*assetCounter)
	}
	created := &assetCounter{}
	actual, _ := s.perAsset.LoadOrStore(assetCode, created)
	return actual.(*assetCounter)
}

func (c *assetCounter) add(n int64) {
	atomic.AddInt64(&c.count, n)
}

// Snapshot is a point-in-time copy of the accumulated counters, suitable for
// flushing to the statistics table and then subtracting back out (so the
// next flush only reports the delta).
type Snapshot struct {
	Readings  int64
	Discarded int64
	PerAsset  map[string]int64
}

// Snapshot copies out the current totals without resetting them; callers
// that flush deltas should pair this with Subtract once the flush succeeds.
func (s *Stats) Snapshot() Snapshot {
	out := Snapshot{
		Readings:  atomic.LoadInt64(&s.readings),
		Discarded: atomic.LoadInt64(&s.discarded),
		PerAsset:  make(map[string]int64),
	}
	s.perAsset.Range(func(key, value interface{}) bool {
		out.PerAsset[key.(string)] = atomic.LoadInt64(&value.(*assetCounter).count)
		return true
	})
	return out
}

// Subtract removes a previously taken Snapshot's counts from the running
// totals, leaving only readings recorded after the snapshot was taken.
func (s *Stats) Subtract(snap Snapshot) {
	atomic.AddInt64(&s.readings, -snap.Readings)
	atomic.AddInt64(&s.discarded, -snap.Discarded)
	for assetCode, n := range snap.PerAsset {
		if n == 0 {
			continue
		}
		s.counterFor(assetCode).add(-n)
	}
}
