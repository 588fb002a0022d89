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

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/charithmadhuranga/fledge/internal/errs"
	"github.com/charithmadhuranga/fledge/pkg/reading"
)

// defaultConnString matches the reference design's bare "dbname = foglamp"
// libpq keyword/value string, used when DB_CONNECTION is unset.
const defaultConnString = "dbname = foglamp"

// Engine is the storage component: a pgx connection pool plus the compiled
// dialect operations layered over it. It holds no query-specific state of
// its own — every method is a thin wrapper translating a dialect document
// into SQL and running it.
type Engine struct {
	pool          *pgxpool.Pool
	sink          errs.Sink
	defaultTimeout time.Duration
}

// Open builds an Engine from the DB_CONNECTION environment variable,
// falling back to defaultConnString when unset. sink receives every
// storage-layer failure; pass errs.NopSink{} to discard them, or
// errs.Default() to route through the shared rate-limited logger.
func Open(ctx context.Context, sink errs.Sink) (*Engine, error) {
	connString := os.Getenv("DB_CONNECTION")
	if connString == "" {
		connString = defaultConnString
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	if sink == nil {
		sink = errs.NopSink{}
	}
	return &Engine{pool: pool, sink: sink, defaultTimeout: 30 * time.Second}, nil
}

// Close releases the underlying connection pool.
func (e *Engine) Close() {
	e.pool.Close()
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.defaultTimeout)
}

func (e *Engine) fail(operation string, err error) error {
	sqlState := pgSQLState(err)
	storageErr := errs.StorageError(operation, sqlState, err)
	e.sink.SetError(operation, storageErr.Reason, storageErr.Retriable)
	return storageErr
}

// Retrieve runs a generic dialect query (select/aggregate/return/group/
// sort/timebucket/limit/skip) against table.
func (e *Engine) Retrieve(ctx context.Context, table string, cond Condition) (ResultSet, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	sql, err := CompileSelect(table, cond, "")
	if err != nil {
		return ResultSet{}, err
	}
	rows, err := e.pool.Query(ctx, sql)
	if err != nil {
		return ResultSet{}, e.fail("retrieve", err)
	}
	defer rows.Close()
	return DecodeRows(rows)
}

// Insert runs a flat-object INSERT against table.
func (e *Engine) Insert(ctx context.Context, table string, payload map[string]interface{}) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	raw := make(map[string]json.RawMessage, len(payload))
	for k, v := range payload {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("storage: encode %q: %w", k, err)
		}
		raw[k] = b
	}
	sql, err := CompileInsert(table, raw)
	if err != nil {
		return err
	}
	if _, err := e.pool.Exec(ctx, sql); err != nil {
		return e.fail("insert", err)
	}
	return nil
}

// Update runs every entry in payload against table, stopping at the first
// failure (entries are not wrapped in a shared transaction: each is
// independently idempotent under the dialect's own semantics).
func (e *Engine) Update(ctx context.Context, table string, payload UpdatePayload) (int64, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	stmts, err := CompileUpdate(table, payload)
	if err != nil {
		return 0, err
	}
	var affected int64
	for _, stmt := range stmts {
		tag, err := e.pool.Exec(ctx, stmt)
		if err != nil {
			return affected, e.fail("update", err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// Delete runs a DELETE against table; where must be non-empty.
func (e *Engine) Delete(ctx context.Context, table string, where *WhereNode) (int64, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	sql, err := CompileDelete(table, where)
	if err != nil {
		return 0, err
	}
	tag, err := e.pool.Exec(ctx, sql)
	if err != nil {
		return 0, e.fail("delete", err)
	}
	return tag.RowsAffected(), nil
}

// AppendReadings inserts a batch of readings in one round trip. Rows with
// an unparseable user timestamp are skipped and reported to the engine's
// sink rather than aborting the batch.
func (e *Engine) AppendReadings(ctx context.Context, readings []reading.Reading) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	sql, err := appendReadings(readings, e.sink)
	if err != nil {
		return err
	}
	if sql == "" {
		return nil
	}
	if _, err := e.pool.Exec(ctx, sql); err != nil {
		return e.fail("appendReadings", err)
	}
	return nil
}

// FetchReadings returns up to limit readings with id > afterID, ascending,
// for the north-side cursor scan.
func (e *Engine) FetchReadings(ctx context.Context, afterID int64, limit int) (ResultSet, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	rows, err := e.pool.Query(ctx, fetchReadings(afterID, limit))
	if err != nil {
		return ResultSet{}, e.fail("fetchReadings", err)
	}
	defer rows.Close()
	return DecodeRows(rows)
}

// RetrieveReadings runs a generic dialect query against the readings table.
func (e *Engine) RetrieveReadings(ctx context.Context, cond Condition) (ResultSet, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	sql, err := retrieveReadings(cond)
	if err != nil {
		return ResultSet{}, err
	}
	rows, err := e.pool.Query(ctx, sql)
	if err != nil {
		return ResultSet{}, e.fail("retrieveReadings", err)
	}
	defer rows.Close()
	return DecodeRows(rows)
}

// PurgeReadings ages out old rows. age is hours (0 selects the documented
// "oldest row age / 360" fallback); flags bit 0 set means protect rows the
// north side has not yet read (id >= sent) from deletion; sent is the last
// id the north side has fetched.
func (e *Engine) PurgeReadings(ctx context.Context, age int, flags int, sent int64) (PurgeSummary, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	protectUnsent := flags&1 != 0

	var summary PurgeSummary
	if !protectUnsent {
		row := e.pool.QueryRow(ctx, purgeCountUnsentSQL(age), sent)
		if err := row.Scan(&summary.UnsentPurged); err != nil {
			return PurgeSummary{}, e.fail("purgeReadings", err)
		}
	}

	var tag pgconn.CommandTag
	var err error
	if protectUnsent {
		tag, err = e.pool.Exec(ctx, purgeDeleteSQL(age, true), sent)
	} else {
		tag, err = e.pool.Exec(ctx, purgeDeleteSQL(age, false))
	}
	if err != nil {
		return PurgeSummary{}, e.fail("purgeReadings", err)
	}
	summary.Removed = tag.RowsAffected()

	row := e.pool.QueryRow(ctx, `SELECT count(*) FILTER (WHERE id >= $1), count(*) FROM "readings"`, sent)
	if err := row.Scan(&summary.UnsentRetained, &summary.Readings); err != nil {
		return PurgeSummary{}, e.fail("purgeReadings", err)
	}
	return summary, nil
}

// UpsertCounter adds delta to a named row in the statistics table, creating
// it at delta if absent. It backs the ingest stats-flush thread (one row
// per asset code, plus the global READINGS/discardedReadings counters); the
// performance monitor writes through InsertPerfSample instead.
func (e *Engine) UpsertCounter(ctx context.Context, table, key string, delta int64) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	sql := fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = %s.value + EXCLUDED.value`,
		quoteIdentifier(table), quoteIdentifier(table),
	)
	if _, err := e.pool.Exec(ctx, sql, key, delta); err != nil {
		return e.fail("upsertCounter", err)
	}
	return nil
}

// InsertPerfSample records one performance-monitor flush row: a name plus
// its min/avg/max/count over the flushed interval, tagged with the owning
// service name.
func (e *Engine) InsertPerfSample(ctx context.Context, service, name string, min, avg, max float64, count int64) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	const sql = `INSERT INTO perfmon (service, name, minimum, average, maximum, samples, ts)
		VALUES ($1, $2, $3, $4, $5, $6, now())`
	if _, err := e.pool.Exec(ctx, sql, service, name, min, avg, max, count); err != nil {
		return e.fail("insertPerfSample", err)
	}
	return nil
}

// tableSize reports the row count of table. Nothing in this module calls it.
func (e *Engine) tableSize(ctx context.Context, table string) (int64, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var n int64
	row := e.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, quoteIdentifier(table)))
	if err := row.Scan(&n); err != nil {
		return 0, e.fail("tableSize", err)
	}
	return n, nil
}

// pgSQLState extracts the SQLSTATE code from a pgx error, if any.
func pgSQLState(err error) string {
	type sqlStater interface{ SQLState() string }
	if s, ok := err.(sqlStater); ok {
		return s.SQLState()
	}
	return ""
}
