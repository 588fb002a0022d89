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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charithmadhuranga/fledge/pkg/sqlbuf"
)

const readingsTable = "readings"

// readingsTimestampFormat is the to_char format applied to user_ts/ts
// whenever the readings table is queried without naming return columns, or
// when a caller names user_ts/ts explicitly without their own format.
const readingsTimestampFormat = "YYYY-MM-DD HH24:MI:SS.US"

// CompileSelect compiles a retrieve/retrieveReadings condition into a SELECT
// statement against table. extraWhere, when non-empty, is AND-ed with the
// condition's own where clause (used by purgeReadings-adjacent callers).
func CompileSelect(table string, cond Condition, extraWhere string) (string, error) {
	if len(cond.Sort) > 0 && cond.Timebucket != nil {
		return "", dialectErrf("Sort and timebucket modifiers can not be used in the same payload")
	}
	hasAggregate := len(cond.Aggregate) > 0
	hasReturn := len(cond.Return) > 0
	if hasAggregate && hasReturn {
		return "", dialectErrf("aggregate and return are mutually exclusive")
	}

	var buf sqlbuf.Buffer
	buf.WriteString("SELECT ")

	var appendedWhere []string
	if extraWhere != "" {
		appendedWhere = append(appendedWhere, extraWhere)
	}

	var timebucketProjection string
	if cond.Timebucket != nil {
		timebucketProjection = compileTimebucketProjection(*cond.Timebucket)
	}

	switch {
	case hasAggregate:
		projection, err := compileAggregateProjection(cond.Aggregate, table)
		if err != nil {
			return "", err
		}
		if timebucketProjection != "" {
			projection = timebucketProjection + ", " + projection
		}
		buf.WriteString(projection)
	case hasReturn:
		var specs []ReturnSpec
		if err := json.Unmarshal(cond.Return, &specs); err != nil {
			return "", dialectErrf("invalid return: %v", err)
		}
		projection, extraCond, err := compileReturnProjection(specs, table)
		if err != nil {
			return "", err
		}
		if timebucketProjection != "" {
			projection = timebucketProjection + ", " + projection
		}
		buf.WriteString(projection)
		appendedWhere = append(appendedWhere, extraCond...)
	case timebucketProjection != "":
		buf.WriteString(timebucketProjection)
	default:
		if table == readingsTable {
			buf.WriteString(canonicalReadingsProjection())
		} else {
			buf.WriteString("*")
		}
	}

	buf.WriteString(" FROM ").WriteString(quoteIdentifier(table))

	whereSQL, err := compileWhere(cond.Where)
	if err != nil {
		return "", err
	}
	if whereSQL != "" {
		appendedWhere = append(appendedWhere, whereSQL)
	}
	if len(appendedWhere) > 0 {
		buf.WriteString(" WHERE ").WriteString(strings.Join(appendedWhere, " AND "))
	}

	if cond.Timebucket != nil {
		groupExpr, orderExpr, err := compileTimebucketGroup(*cond.Timebucket)
		if err != nil {
			return "", err
		}
		buf.WriteString(" GROUP BY ").WriteString(groupExpr)
		buf.WriteString(" ORDER BY ").WriteString(orderExpr).WriteString(" DESC")
	} else if len(cond.Group) > 0 {
		groupSQL, err := compileGroup(cond.Group)
		if err != nil {
			return "", err
		}
		buf.WriteString(" GROUP BY ").WriteString(groupSQL)
	}

	if len(cond.Sort) > 0 {
		sortSQL, err := compileSort(cond.Sort)
		if err != nil {
			return "", err
		}
		buf.WriteString(" ORDER BY ").WriteString(sortSQL)
	}

	if cond.Limit != nil {
		buf.WriteString(" LIMIT ").WriteInt(int64(*cond.Limit))
	}
	if cond.Skip != nil {
		buf.WriteString(" OFFSET ").WriteInt(int64(*cond.Skip))
	}

	return buf.Coalesce(), nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// canonicalReadingsProjection is the tuple projected whenever a readings
// SELECT does not request specific columns.
func canonicalReadingsProjection() string {
	return fmt.Sprintf(
		`id, asset_code, read_key, reading, to_char(user_ts, '%s') as user_ts, to_char(ts, '%s') as ts`,
		readingsTimestampFormat, readingsTimestampFormat,
	)
}

func compileReturnProjection(specs []ReturnSpec, table string) (string, []string, error) {
	parts := make([]string, 0, len(specs))
	var extraWhere []string
	for _, spec := range specs {
		expr, cond, err := compileReturnSpec(spec, table)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, expr)
		if cond != "" {
			extraWhere = append(extraWhere, cond)
		}
	}
	return strings.Join(parts, ", "), extraWhere, nil
}

func compileReturnSpec(spec ReturnSpec, table string) (string, string, error) {
	alias := spec.Alias
	switch {
	case spec.JSON != nil:
		if len(spec.JSON.Properties) == 0 {
			return "", "", dialectErrf("json return requires properties")
		}
		col := quoteColumn(spec.JSON.Column)
		expr := col
		for _, p := range spec.JSON.Properties {
			expr += "->" + quoteStringLiteral(p)
		}
		lastKey := spec.JSON.Properties[len(spec.JSON.Properties)-1]
		existsCond := fmt.Sprintf("%s ? %s", col, quoteStringLiteral(lastKey))
		if alias == "" {
			alias = spec.JSON.Column
		}
		return fmt.Sprintf("%s AS %s", expr, quoteIdentifier(alias)), existsCond, nil

	case spec.Format != "":
		expr := fmt.Sprintf("to_char(%s, %s)", quoteColumn(spec.Column), quoteStringLiteral(spec.Format))
		return withAlias(expr, alias, spec.Column), "", nil

	case spec.Timezone != "":
		expr := fmt.Sprintf("%s AT TIME ZONE %s", quoteColumn(spec.Column), quoteStringLiteral(spec.Timezone))
		return withAlias(expr, alias, spec.Column), "", nil

	default:
		if table == readingsTable && (spec.Column == "user_ts" || spec.Column == "ts") {
			expr := fmt.Sprintf("to_char(%s, '%s')", quoteColumn(spec.Column), readingsTimestampFormat)
			return withAlias(expr, alias, spec.Column), "", nil
		}
		expr := quoteColumn(spec.Column)
		if alias == "" {
			return expr, "", nil
		}
		return expr + " AS " + quoteIdentifier(alias), "", nil
	}
}

func withAlias(expr, alias, fallback string) string {
	if alias == "" {
		alias = fallback
	}
	return expr + " AS " + quoteIdentifier(alias)
}

func compileAggregateProjection(raw json.RawMessage, table string) (string, error) {
	specs, err := decodeAggregateSpecs(raw)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		expr, err := compileAggregateSpec(spec, table)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, ", "), nil
}

func decodeAggregateSpecs(raw json.RawMessage) ([]AggregateSpec, error) {
	var arr []AggregateSpec
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var single AggregateSpec
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, dialectErrf("invalid aggregate: %v", err)
	}
	return []AggregateSpec{single}, nil
}

func compileAggregateSpec(spec AggregateSpec, table string) (string, error) {
	var arg string
	switch {
	case spec.JSON != nil:
		if len(spec.JSON.Properties) == 0 {
			return "", dialectErrf("aggregate json requires properties")
		}
		expr := quoteColumn(spec.JSON.Column)
		for _, p := range spec.JSON.Properties {
			expr += "->" + quoteStringLiteral(p)
		}
		arg = expr
	case strings.EqualFold(spec.Operation, "count") && (spec.Column == "" || spec.Column == "*"):
		arg = "*"
	case table == readingsTable && spec.Column == "user_ts":
		arg = fmt.Sprintf("to_char(user_ts, '%s')", readingsTimestampFormat)
	default:
		arg = quoteColumn(spec.Column)
	}

	alias := spec.Alias
	if alias == "" {
		colPart := spec.Column
		if colPart == "" {
			colPart = "*"
		}
		alias = fmt.Sprintf("%s_%s", spec.Operation, colPart)
	}
	return fmt.Sprintf("%s(%s) AS %s", spec.Operation, arg, quoteIdentifier(alias)), nil
}

func compileGroup(raw json.RawMessage) (string, error) {
	var arr []GroupSpec
	if err := json.Unmarshal(raw, &arr); err == nil {
		parts := make([]string, len(arr))
		for i, g := range arr {
			parts[i] = compileGroupSpec(g)
		}
		return strings.Join(parts, ", "), nil
	}
	var single GroupSpec
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", dialectErrf("invalid group: %v", err)
	}
	return compileGroupSpec(single), nil
}

func compileGroupSpec(g GroupSpec) string {
	if g.Format != "" {
		return fmt.Sprintf("to_char(%s, %s)", quoteColumn(g.Column), quoteStringLiteral(g.Format))
	}
	return quoteColumn(g.Column)
}

func compileSort(raw json.RawMessage) (string, error) {
	var arr []SortSpec
	if err := json.Unmarshal(raw, &arr); err == nil {
		parts := make([]string, len(arr))
		for i, s := range arr {
			parts[i] = compileSortSpec(s)
		}
		return strings.Join(parts, ", "), nil
	}
	var single SortSpec
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", dialectErrf("invalid sort: %v", err)
	}
	return compileSortSpec(single), nil
}

func compileSortSpec(s SortSpec) string {
	dir := s.Direction
	if dir == "" {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s", quoteColumn(s.Column), dir)
}

// compileTimebucketGroup renders both the GROUP BY and ORDER BY expressions
// for a timebucket selector; the projection itself is rendered by
// compileTimebucketProjection and added alongside any other `return` cols.
func compileTimebucketGroup(tb TimebucketSpec) (string, string, error) {
	size := tb.Size
	if size <= 0 {
		size = 1
	}
	floorExpr := fmt.Sprintf("floor(%d * floor(extract(epoch from %s) / %d))", size, quoteColumn(tb.Timestamp), size)
	return floorExpr, floorExpr, nil
}

// compileTimebucketProjection renders the projection column for a
// timebucket selector; SELECT callers that use timebucket should prepend
// this to their projection list.
func compileTimebucketProjection(tb TimebucketSpec) string {
	size := tb.Size
	if size <= 0 {
		size = 1
	}
	alias := tb.Alias
	if alias == "" {
		alias = "timestamp"
	}
	inner := fmt.Sprintf("to_timestamp(%d * floor(extract(epoch from %s) / %d))", size, quoteColumn(tb.Timestamp), size)
	if tb.Format != "" {
		inner = fmt.Sprintf("to_char(%s, %s)", inner, quoteStringLiteral(tb.Format))
	}
	return fmt.Sprintf("%s AS %s", inner, quoteIdentifier(alias))
}
