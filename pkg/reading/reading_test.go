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

package reading

import (
	"testing"
	"time"
)

func TestNew_RequiresAssetCode(t *testing.T) {
	_, err := New("", time.Now(), time.Now(), "", nil)
	if err != ErrMissingAssetCode {
		t.Fatalf("expected ErrMissingAssetCode, got %v", err)
	}
}

func TestNew_CopiesDatapoints(t *testing.T) {
	dps := []Datapoint{{Name: "temp", Value: NewFloat(21.5)}}
	r, err := New("sensor1", time.Now(), time.Now(), "", dps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dps[0].Name = "mutated"
	got, ok := r.Datapoint("temp")
	if !ok {
		t.Fatalf("expected original datapoint name to survive caller mutation")
	}
	if f, _ := got.Value.FloatValue(); f != 21.5 {
		t.Fatalf("expected 21.5, got %v", f)
	}
}

func TestGetAssetDateUserTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 100000000, time.UTC)
	r, err := New("A1", ts, ts, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.GetAssetDateUserTime()
	want := "2024-01-02 03:04:05.100000"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDatapoint_Missing(t *testing.T) {
	r, _ := New("A1", time.Now(), time.Now(), "", nil)
	if _, ok := r.Datapoint("missing"); ok {
		t.Fatalf("expected missing datapoint to report ok=false")
	}
}

func TestReadKey_RoundTrips(t *testing.T) {
	r, err := New("A1", time.Now(), time.Now(), "client-dedupe-key", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.ReadKey(); got != "client-dedupe-key" {
		t.Fatalf("got %q", got)
	}
}

func TestMarshalJSON_FlattensDatapoints(t *testing.T) {
	dps := []Datapoint{{Name: "temp", Value: NewFloat(21.5)}, {Name: "unit", Value: NewString("C")}}
	r, _ := New("A1", time.Now(), time.Now(), "", dps)
	b, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(b); got != `{"temp":21.5,"unit":"C"}` {
		t.Fatalf("got %s", got)
	}
}
