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

package errs

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestStorageError_RemapsKnownSQLState(t *testing.T) {
	e := StorageError("appendReadings", "22P02", errors.New("invalid input syntax"))
	if e.Reason != "Unable to convert data to the required type" {
		t.Fatalf("got %q", e.Reason)
	}
	if e.Kind != KindStorage {
		t.Fatalf("expected KindStorage")
	}
}

func TestStorageError_PassesThroughUnknownSQLState(t *testing.T) {
	e := StorageError("appendReadings", "23505", errors.New("duplicate key"))
	if e.Reason != "duplicate key" {
		t.Fatalf("got %q", e.Reason)
	}
}

func TestRateLimitedSink_SuppressesRepeats(t *testing.T) {
	sink := NewRateLimitedSink(zerolog.Nop())
	sink.Window = time.Hour
	sink.SetError("op", "first", false)
	sink.SetError("op", "second", false)
	sink.mu.Lock()
	n := len(sink.last)
	sink.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one tracked operation, got %d", n)
	}
}

func TestRateLimitedSink_LogsAgainAfterWindow(t *testing.T) {
	sink := NewRateLimitedSink(zerolog.Nop())
	sink.Window = time.Millisecond
	sink.SetError("op", "first", false)
	sink.mu.Lock()
	first := sink.last["op"]
	sink.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	sink.SetError("op", "second", false)
	sink.mu.Lock()
	last := sink.last["op"]
	sink.mu.Unlock()
	if !last.After(first) {
		t.Fatalf("expected last-seen timestamp to have been refreshed")
	}
}
