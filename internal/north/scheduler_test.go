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

package north

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/charithmadhuranga/fledge/internal/omf"
)

type fakeFetcher struct {
	page Page
}

func (f *fakeFetcher) FetchReadings(_ context.Context, _ int64, _ int) (Page, error) {
	return f.page, nil
}

type fakeCursorStore struct {
	mu   sync.Mutex
	ids  map[string]int64
	oks  map[string]bool
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{ids: map[string]int64{}, oks: map[string]bool{}}
}

func (f *fakeCursorStore) Load(_ context.Context, service string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[service], f.oks[service], nil
}

func (f *fakeCursorStore) Save(_ context.Context, service string, lastID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[service] = lastID
	f.oks[service] = true
	return nil
}

func TestScheduler_RunOnce_NothingNewIsNoOp(t *testing.T) {
	fetcher := &fakeFetcher{page: Page{MaxID: 0}}
	cs := newFakeCursorStore()
	s := New(fetcher, omf.New(), cs, http.DefaultClient, zerolog.Nop(), "north", "http://unused", nil, 100)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 forwarded, got %d", n)
	}
}

func TestScheduler_RunOnce_PostsBatchAndAdvancesCursor(t *testing.T) {
	var posted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		posted = append(posted, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload, _ := json.Marshal(map[string]interface{}{"temp": 21.5})
	fetcher := &fakeFetcher{page: Page{
		Readings: []Row{{ID: 5, AssetCode: "sensor", ReadingJSON: payload, UserTS: "2026-01-02 03:04:05.000000"}},
		MaxID:    5,
	}}
	cs := newFakeCursorStore()
	s := New(fetcher, omf.New(), cs, srv.Client(), zerolog.Nop(), "north", srv.URL, nil, 100)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 forwarded, got %d", n)
	}
	if len(posted) != 2 { // container batch + value batch
		t.Fatalf("expected container and value posts, got %d: %v", len(posted), posted)
	}

	id, ok, err := cs.Load(context.Background(), "north")
	if err != nil || !ok || id != 5 {
		t.Fatalf("expected cursor advanced to 5, got id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestScheduler_RunOnce_SkipsUnparseableRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{page: Page{
		Readings: []Row{{ID: 1, AssetCode: "sensor", ReadingJSON: json.RawMessage(`{}`), UserTS: "not-a-timestamp"}},
		MaxID:    1,
	}}
	cs := newFakeCursorStore()
	s := New(fetcher, omf.New(), cs, srv.Client(), zerolog.Nop(), "north", srv.URL, nil, 100)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected RunOnce to still report the fetched count, got %d", n)
	}
}
