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
	"fmt"
	"strings"
	"time"

	"github.com/charithmadhuranga/fledge/internal/errs"
	"github.com/charithmadhuranga/fledge/pkg/reading"
	"github.com/charithmadhuranga/fledge/pkg/sqlbuf"
)

// NormalizeTimestamp canonicalises a caller-supplied timestamp string into
// the microsecond-precision, UTC-qualified form the readings table stores.
// It is a fixed point: NormalizeTimestamp(NormalizeTimestamp(s)) == s for
// any s already in canonical form.
//
// Accepted inputs: "YYYY-MM-DD HH:MM:SS[.ffffff][+HH:MM]". A missing
// fractional part is zero-padded to six digits; a fractional part longer
// than six digits is truncated, not rounded, matching the documented
// behaviour of the reference implementation. A missing zone offset (or a
// trailing "Z") is written as "+00:00"; an explicit offset is kept as given.
func NormalizeTimestamp(s string) (string, error) {
	s = strings.TrimSpace(s)
	datePart := s
	zone := "+00:00"
	if len(s) > 10 {
		if idx := strings.IndexAny(s[10:], "+-"); idx >= 0 {
			idx += 10
			datePart = s[:idx]
			zone = s[idx:]
		} else if strings.HasSuffix(s, "Z") {
			datePart = strings.TrimSuffix(s, "Z")
			zone = "+00:00"
		}
	}

	main := datePart
	frac := ""
	if dot := strings.IndexByte(datePart, '.'); dot >= 0 {
		main = datePart[:dot]
		frac = datePart[dot+1:]
	}
	if len(frac) > 6 {
		frac = frac[:6]
	}
	for len(frac) < 6 {
		frac += "0"
	}

	t, err := time.Parse("2006-01-02 15:04:05", main)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	_ = t
	return fmt.Sprintf("%s.%s%s", main, frac, normalizeZone(zone)), nil
}

func normalizeZone(zone string) string {
	if zone == "" {
		return "+00:00"
	}
	return zone
}

// readKeyLiteral renders the read_key column value per the documented
// "missing or literal \"None\"" rule: both cases write SQL NULL rather than
// the quoted string.
func readKeyLiteral(readKey string) string {
	if readKey == "" || readKey == "None" {
		return "NULL"
	}
	return quoteStringLiteral(readKey)
}

// appendReadings builds the multi-row INSERT used to append a batch of
// readings in a single round trip. user_ts is the reading's own user
// timestamp (GetAssetDateUserTime); ts is the server's now().
//
// A row whose user timestamp fails NormalizeTimestamp is reported to sink
// and omitted from the VALUES list rather than aborting the whole batch.
// sink may be nil, in which case the failure is silently dropped.
func appendReadings(readings []reading.Reading, sink errs.Sink) (string, error) {
	if len(readings) == 0 {
		return "", dialectErrf("appendReadings requires at least one reading")
	}
	var buf sqlbuf.Buffer
	buf.WriteString(`INSERT INTO "readings" (asset_code, read_key, reading, user_ts, ts) VALUES `)
	written := 0
	for _, r := range readings {
		userTS, err := NormalizeTimestamp(r.GetAssetDateUserTime())
		if err != nil {
			if sink != nil {
				storageErr := errs.Wrap(errs.KindInvalidDate, "appendReadings", err)
				sink.SetError("appendReadings", storageErr.Reason, false)
			}
			continue
		}
		payload, err := r.MarshalJSON()
		if err != nil {
			return "", err
		}
		if written > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("(")
		buf.WriteString(quoteStringLiteral(r.AssetCode()))
		buf.WriteString(", ")
		buf.WriteString(readKeyLiteral(r.ReadKey()))
		buf.WriteString(", ")
		buf.WriteString(quoteStringLiteral(string(payload)))
		buf.WriteString("::jsonb, ")
		buf.WriteString(quoteStringLiteral(userTS))
		buf.WriteString("::timestamp, now())")
		written++
	}
	if written == 0 {
		return "", nil
	}
	return buf.Coalesce(), nil
}

// fetchReadings builds the SELECT used by the north-side cursor scan: rows
// with id greater than afterID, oldest first, bounded by limit.
func fetchReadings(afterID int64, limit int) string {
	var buf sqlbuf.Buffer
	buf.WriteString("SELECT ").WriteString(canonicalReadingsProjection())
	buf.WriteString(` FROM "readings" WHERE id > `).WriteInt(afterID)
	buf.WriteString(" ORDER BY id ASC LIMIT ").WriteInt(int64(limit))
	return buf.Coalesce()
}

// retrieveReadings compiles a general retrieve query against the readings
// table through CompileSelect, which applies the canonical readings
// projection when cond names no columns.
func retrieveReadings(cond Condition) (string, error) {
	return CompileSelect(readingsTable, cond, "")
}

// PurgeSummary is the {removed, unsentPurged, unsentRetained, readings}
// object purgeReadings reports back.
type PurgeSummary struct {
	Removed        int64 `json:"removed"`
	UnsentPurged   int64 `json:"unsentPurged"`
	UnsentRetained int64 `json:"unsentRetained"`
	Readings       int64 `json:"readings"`
}

// purgeAgeExpr renders the SQL scalar expression for the effective purge
// age in hours. A nonzero age is used as given; age==0 is replaced by
// round((now - oldest(user_ts)) / 360), taken verbatim from the documented
// formula rather than the "hours/10" aside that accompanies it in the same
// sentence (the two do not agree arithmetically — dividing an epoch-second
// delta by 360 is not the same operation as halving an hour count by 10 —
// and the formula, not the aside, is what is preserved here; see the
// design notes).
func purgeAgeExpr(age int) string {
	if age != 0 {
		return fmt.Sprintf("%d", age)
	}
	return `COALESCE(round(extract(epoch from (now() - (SELECT min(user_ts) FROM "readings")))/360), 0)`
}

// purgeCountUnsentSQL counts rows that would be purged by purgeDeleteSQL(age,
// false) but have not yet been sent north (id > sent). It is only evaluated
// when the caller has not asked to protect unsent rows from deletion.
func purgeCountUnsentSQL(age int) string {
	return fmt.Sprintf(
		`SELECT count(*) FROM "readings" WHERE user_ts < now() - (%s || ' hours')::interval AND id > $1`,
		purgeAgeExpr(age),
	)
}

// purgeDeleteSQL builds the DELETE used to age out old readings. When
// protectUnsent is true, the delete is additionally bounded to id < sent,
// so no row the north side has not yet read is ever removed.
func purgeDeleteSQL(age int, protectUnsent bool) string {
	ageExpr := purgeAgeExpr(age)
	if protectUnsent {
		return fmt.Sprintf(
			`DELETE FROM "readings" WHERE user_ts < now() - (%s || ' hours')::interval AND id < $1`, ageExpr,
		)
	}
	return fmt.Sprintf(`DELETE FROM "readings" WHERE user_ts < now() - (%s || ' hours')::interval`, ageExpr)
}
