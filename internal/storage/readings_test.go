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
	"strings"
	"testing"
	"time"

	"github.com/charithmadhuranga/fledge/pkg/reading"
)

type fakeSink struct {
	operations []string
	reasons    []string
}

func (s *fakeSink) SetError(operation, reason string, retriable bool) {
	s.operations = append(s.operations, operation)
	s.reasons = append(s.reasons, reason)
}

func TestNormalizeTimestamp_PadsFraction(t *testing.T) {
	got, err := NormalizeTimestamp("2024-01-02 03:04:05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2024-01-02 03:04:05.000000+00:00" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeTimestamp_TruncatesLongFraction(t *testing.T) {
	got, err := NormalizeTimestamp("2024-01-02 03:04:05.123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2024-01-02 03:04:05.123456+00:00" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeTimestamp_IsFixedPoint(t *testing.T) {
	once, err := NormalizeTimestamp("2024-01-02 03:04:05.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := NormalizeTimestamp(once)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if once != twice {
		t.Fatalf("expected fixed point, got %q then %q", once, twice)
	}
}

func TestNormalizeTimestamp_PreservesExplicitZone(t *testing.T) {
	got, err := NormalizeTimestamp("2024-01-02 03:04:05+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(got, "+02:00") {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeTimestamp_RejectsGarbage(t *testing.T) {
	if _, err := NormalizeTimestamp("not-a-timestamp"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAppendReadings_RequiresAtLeastOne(t *testing.T) {
	if _, err := appendReadings(nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAppendReadings_BuildsMultiRowInsert(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r1, _ := reading.New("A1", ts, ts, "key-1", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(1)}})
	r2, _ := reading.New("A2", ts, ts, "", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(2)}})
	sql, err := appendReadings([]reading.Reading{r1, r2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "'A1'") || !strings.Contains(sql, "'A2'") {
		t.Fatalf("expected both asset codes, got %q", sql)
	}
	if strings.Count(sql, "::jsonb") != 2 {
		t.Fatalf("expected one jsonb cast per row, got %q", sql)
	}
	if !strings.Contains(sql, "'key-1'") {
		t.Fatalf("expected the explicit read_key to be quoted, got %q", sql)
	}
	if strings.Count(sql, "NULL") != 1 {
		t.Fatalf("expected exactly one NULL read_key for the row with no key, got %q", sql)
	}
}

func TestAppendReadings_NoneReadKeyLiteralIsNull(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r, _ := reading.New("A1", ts, ts, "None", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(1)}})
	sql, err := appendReadings([]reading.Reading{r}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "NULL") {
		t.Fatalf("expected literal \"None\" read_key to render as NULL, got %q", sql)
	}
}

// badUserTimestamp is a five-digit year: GetAssetDateUserTime formats it to
// "20000-01-02 03:04:05.000000", which shifts every fixed offset
// NormalizeTimestamp assumes and so fails to parse back — a reachable
// stand-in for a row whose user timestamp cannot be normalised.
var badUserTimestamp = time.Date(20000, 1, 2, 3, 4, 5, 0, time.UTC)

func TestAppendReadings_SkipsInvalidDateRowAndContinues(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	good1, _ := reading.New("A1", ts, ts, "", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(1)}})
	bad, _ := reading.New("BAD", badUserTimestamp, ts, "", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(2)}})
	good2, _ := reading.New("A2", ts, ts, "", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(3)}})

	sink := &fakeSink{}
	sql, err := appendReadings([]reading.Reading{good1, bad, good2}, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(sql, "'BAD'") {
		t.Fatalf("expected the invalid-date row to be omitted, got %q", sql)
	}
	if !strings.Contains(sql, "'A1'") || !strings.Contains(sql, "'A2'") {
		t.Fatalf("expected both valid rows to remain, got %q", sql)
	}
	if len(sink.operations) != 1 || sink.operations[0] != "appendReadings" {
		t.Fatalf("expected the skipped row to be reported to the sink, got %v", sink.operations)
	}
}

func TestAppendReadings_AllRowsInvalidReturnsEmptySQL(t *testing.T) {
	bad, _ := reading.New("BAD", badUserTimestamp, badUserTimestamp, "", []reading.Datapoint{{Name: "x", Value: reading.NewFloat(1)}})
	sink := &fakeSink{}
	sql, err := appendReadings([]reading.Reading{bad}, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sql != "" {
		t.Fatalf("expected no SQL when every row is skipped, got %q", sql)
	}
	if len(sink.operations) != 1 {
		t.Fatalf("expected one sink report, got %v", sink.operations)
	}
}

func TestFetchReadings_OrdersAscendingWithLimit(t *testing.T) {
	sql := fetchReadings(42, 100)
	if !strings.Contains(sql, "id > 42") || !strings.Contains(sql, "ORDER BY id ASC") || !strings.Contains(sql, "LIMIT 100") {
		t.Fatalf("got %q", sql)
	}
}

func TestPurgeAgeExpr_ZeroAgeUsesOldestRowFormula(t *testing.T) {
	expr := purgeAgeExpr(0)
	if !strings.Contains(expr, "min(user_ts)") || !strings.Contains(expr, "/360") {
		t.Fatalf("expected the preserved oldest-row/360 fallback formula, got %q", expr)
	}
}

func TestPurgeAgeExpr_NonZeroAgeIsLiteral(t *testing.T) {
	if got := purgeAgeExpr(24); got != "24" {
		t.Fatalf("got %q", got)
	}
}

func TestPurgeDeleteSQL_ProtectUnsentBoundsByID(t *testing.T) {
	protected := purgeDeleteSQL(24, true)
	if !strings.Contains(protected, "id < $1") {
		t.Fatalf("expected id < $1 guard, got %q", protected)
	}
	unprotected := purgeDeleteSQL(24, false)
	if strings.Contains(unprotected, "id <") {
		t.Fatalf("expected no id guard when not protecting unsent, got %q", unprotected)
	}
}

func TestPurgeCountUnsentSQL_CountsByAgeAndID(t *testing.T) {
	sql := purgeCountUnsentSQL(24)
	if !strings.Contains(sql, "id > $1") {
		t.Fatalf("got %q", sql)
	}
}
