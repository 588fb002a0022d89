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
	"testing"
	"time"

	"github.com/charithmadhuranga/fledge/pkg/reading"
)

type recordingFilter struct {
	closed bool
	order  *[]string
	name   string
	drop   bool
}

func (f *recordingFilter) Ingest(in []reading.Reading) []reading.Reading {
	if f.drop {
		return nil
	}
	return in
}

func (f *recordingFilter) Close() {
	f.closed = true
	*f.order = append(*f.order, f.name)
}

func mustReading(t *testing.T, assetCode string) reading.Reading {
	t.Helper()
	now := time.Now()
	r, err := reading.New(assetCode, now, now, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func TestPipeline_NilIsPassThrough(t *testing.T) {
	var p *Pipeline
	in := []reading.Reading{mustReading(t, "A1")}
	out := p.Run(in)
	if len(out) != 1 {
		t.Fatalf("expected pass-through, got %d", len(out))
	}
}

func TestPipeline_EmptyStagesIsPassThrough(t *testing.T) {
	p := NewPipeline(nil)
	in := []reading.Reading{mustReading(t, "A1")}
	out := p.Run(in)
	if len(out) != 1 {
		t.Fatalf("expected pass-through, got %d", len(out))
	}
}

func TestPipeline_StageCanDiscard(t *testing.T) {
	var order []string
	p := NewPipeline([]Filter{&recordingFilter{order: &order, name: "drop", drop: true}})
	out := p.Run([]reading.Reading{mustReading(t, "A1")})
	if out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}

func TestPipeline_CloseRunsInReverseOrder(t *testing.T) {
	var order []string
	p := NewPipeline([]Filter{
		&recordingFilter{order: &order, name: "first"},
		&recordingFilter{order: &order, name: "second"},
	})
	p.Close()
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("expected reverse close order, got %v", order)
	}
}
