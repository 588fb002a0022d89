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

// Package north drives the single fetcher+emitter thread the north process
// runs: poll storage for unsent readings, hand each to the OMF emitter,
// flush queued containers ahead of the value batch, POST the batch, and
// advance the persisted cursor only once the remote has accepted it.
package north

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/charithmadhuranga/fledge/internal/cursor"
	"github.com/charithmadhuranga/fledge/internal/omf"
	"github.com/charithmadhuranga/fledge/pkg/reading"
)

// Fetcher is the storage collaborator the scheduler polls.
type Fetcher interface {
	FetchReadings(ctx context.Context, afterID int64, limit int) (Page, error)
}

// Page is the decoded slice of rows a fetch call returns, paired with the
// highest id seen so the cursor can advance past exactly what was sent.
type Page struct {
	Readings []Row
	MaxID    int64
}

// Row is one fetched readings-table row in the shape FetchReadings's
// canonical projection returns: id, asset_code, read_key, the reading's own
// jsonb payload, and a "YYYY-MM-DD HH:MM:SS.uuuuuu" formatted user_ts string.
type Row struct {
	ID          int64
	AssetCode   string
	ReadKey     string
	ReadingJSON json.RawMessage
	UserTS      string
}

// Scheduler is single-threaded by design (§5): the emitter it owns is not
// safe for concurrent use, and the HTTP client it drives is blocking.
type Scheduler struct {
	fetcher     Fetcher
	emitter     *omf.Emitter
	cursorStore cursor.Store
	client      *http.Client
	log         zerolog.Logger
	service     string
	endpoint    string
	headers     map[string]string
	batchSize   int
}

// New builds a Scheduler. endpoint is the OMF ingress URL used for both the
// container batch and the value batch; headers are applied to both POSTs
// (authentication, producer token, etc).
func New(fetcher Fetcher, emitter *omf.Emitter, cursorStore cursor.Store, client *http.Client, log zerolog.Logger, service, endpoint string, headers map[string]string, batchSize int) *Scheduler {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Scheduler{
		fetcher: fetcher, emitter: emitter, cursorStore: cursorStore,
		client: client, log: log, service: service, endpoint: endpoint,
		headers: headers, batchSize: batchSize,
	}
}

// RunOnce fetches and forwards at most one batch, reporting how many
// readings it sent. A zero count with a nil error means there was nothing
// new to forward.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	lastID, _, err := s.cursorStore.Load(ctx, s.service)
	if err != nil {
		return 0, fmt.Errorf("north: loading cursor: %w", err)
	}

	page, err := s.fetcher.FetchReadings(ctx, lastID, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("north: fetching readings: %w", err)
	}
	if len(page.Readings) == 0 {
		return 0, nil
	}

	var fragments []string
	for _, row := range page.Readings {
		r, err := rowToReading(row)
		if err != nil {
			s.log.Warn().Err(err).Int64("id", row.ID).Msg("skipping unparseable reading")
			continue
		}
		frag, err := s.emitter.ProcessReading(r, "", nil)
		if err != nil {
			s.log.Warn().Err(err).Int64("id", row.ID).Msg("skipping reading that failed to encode")
			continue
		}
		fragments = append(fragments, frag)
	}

	if s.emitter.PendingContainers() {
		if !s.emitter.FlushContainers(ctx, s.log, s.client, s.endpoint, s.headers) {
			return 0, fmt.Errorf("north: container flush failed, holding value batch")
		}
	}

	if len(fragments) > 0 {
		body := "[" + joinComma(fragments) + "]"
		if err := s.postBatch(ctx, body); err != nil {
			return 0, err
		}
	}

	if err := s.cursorStore.Save(ctx, s.service, page.MaxID); err != nil {
		return 0, fmt.Errorf("north: saving cursor: %w", err)
	}
	return len(page.Readings), nil
}

func (s *Scheduler) postBatch(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("north: building value request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("messagetype", "data")
	req.Header.Set("action", "create")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("north: posting value batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("north: value batch rejected with status %d", resp.StatusCode)
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

const userTSLayout = "2006-01-02 15:04:05.000000"

// rowToReading parses a fetched row back into a reading.Reading. JSON
// numbers are not tagged int vs float by encoding/json, so every numeric
// datapoint becomes a Float; this matches the OMF baseType mapping, which
// already treats Integer and Float identically ("Double").
func rowToReading(row Row) (reading.Reading, error) {
	ts, err := time.Parse(userTSLayout, row.UserTS)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("parsing user_ts %q: %w", row.UserTS, err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(row.ReadingJSON, &fields); err != nil {
		return reading.Reading{}, fmt.Errorf("decoding reading payload: %w", err)
	}
	datapoints := make([]reading.Datapoint, 0, len(fields))
	for name, v := range fields {
		switch t := v.(type) {
		case string:
			datapoints = append(datapoints, reading.Datapoint{Name: name, Value: reading.NewString(t)})
		case float64:
			datapoints = append(datapoints, reading.Datapoint{Name: name, Value: reading.NewFloat(t)})
		default:
			// Objects, arrays, bools and null are not forwardable OMF kinds;
			// ProcessReading silently skips anything that is not
			// String/Integer/Float, so they are omitted here rather than
			// encoded into a Value the emitter would discard anyway.
		}
	}
	return reading.New(row.AssetCode, ts, ts, row.ReadKey, datapoints)
}
