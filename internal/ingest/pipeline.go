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

import "github.com/charithmadhuranga/fledge/pkg/reading"

// Filter transforms a batch of readings on the drain thread. Implementations
// own whatever per-instance state they need (a previous-value cache, a
// unit-conversion table, …) and run single-threaded — the pipeline never
// invokes two filters concurrently.
type Filter interface {
	// Ingest transforms in and returns the batch to pass to the next
	// stage. Returning a shorter slice (or nil) discards readings.
	Ingest(in []reading.Reading) []reading.Reading
	// Close releases any resources the filter holds; called when the
	// pipeline is reconfigured or the queue shuts down.
	Close()
}

// Pipeline is an ordered, reconfigurable chain of Filters. A nil or empty
// chain is pass-through: Run returns its input unchanged.
type Pipeline struct {
	stages []Filter
}

// NewPipeline builds a Pipeline from stages, head first.
func NewPipeline(stages []Filter) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run feeds data through every stage in order and returns whatever the
// tail stage produces.
func (p *Pipeline) Run(data []reading.Reading) []reading.Reading {
	if p == nil || len(p.stages) == 0 {
		return data
	}
	for _, stage := range p.stages {
		data = stage.Ingest(data)
		if len(data) == 0 {
			return nil
		}
	}
	return data
}

// Close tears down every stage in reverse order, matching the documented
// reconfiguration procedure (destroy the old pipeline instances in reverse
// order before building the new one).
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].Close()
	}
}
