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

package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charithmadhuranga/fledge/internal/storage"
)

// Engine is the subset of *storage.Engine PostgresStore depends on; it lets
// tests swap in a fake without a live Postgres connection.
type Engine interface {
	Retrieve(ctx context.Context, table string, cond storage.Condition) (storage.ResultSet, error)
	Insert(ctx context.Context, table string, payload map[string]interface{}) error
	Update(ctx context.Context, table string, payload storage.UpdatePayload) (int64, error)
}

// PostgresStore persists cursor rows through the storage engine's own
// dialect compiler rather than hand-rolled SQL, the way the rest of this
// package dogfoods component C.
type PostgresStore struct {
	engine Engine
}

// NewPostgresStore wraps engine as a Store.
func NewPostgresStore(engine Engine) *PostgresStore {
	return &PostgresStore{engine: engine}
}

func serviceEquals(service string) *storage.WhereNode {
	value, _ := json.Marshal(service)
	return &storage.WhereNode{Column: "service", Condition: "=", Value: value}
}

// Load implements Store.
func (p *PostgresStore) Load(ctx context.Context, service string) (int64, bool, error) {
	rs, err := p.engine.Retrieve(ctx, cursorTable, storage.Condition{Where: serviceEquals(service)})
	if err != nil {
		return 0, false, fmt.Errorf("cursor: load %q: %w", service, err)
	}
	if len(rs.Rows) == 0 {
		return 0, false, nil
	}
	raw, ok := rs.Rows[0]["last_sent_id"]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int64:
		return v, true, nil
	case float64:
		return int64(v), true, nil
	default:
		return 0, false, fmt.Errorf("cursor: unexpected last_sent_id type %T", raw)
	}
}

// Save implements Store. It updates the existing row for service when
// present, or inserts a fresh one otherwise — there is no unique-constraint
// upsert in the generic dialect, so the read-then-write is done explicitly.
func (p *PostgresStore) Save(ctx context.Context, service string, lastID int64) error {
	values := map[string]json.RawMessage{
		"last_sent_id": json.RawMessage(fmt.Sprintf("%d", lastID)),
		"updated_at":   json.RawMessage(`"now()"`),
	}
	affected, err := p.engine.Update(ctx, cursorTable, storage.UpdatePayload{
		Updates: []storage.UpdateEntry{{Values: values, Where: serviceEquals(service)}},
	})
	if err != nil {
		return fmt.Errorf("cursor: save %q: %w", service, err)
	}
	if affected > 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := p.engine.Insert(ctx, cursorTable, map[string]interface{}{
		"service":      service,
		"last_sent_id": lastID,
		"updated_at":   now,
	}); err != nil {
		return fmt.Errorf("cursor: insert %q: %w", service, err)
	}
	return nil
}
