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

// CompileInsert compiles a flat JSON object literal into an INSERT
// statement. Values matching IsFunctionCall pass through unquoted; every
// other value is rendered as a SQL literal, including nested
// objects/arrays, which are serialised back to JSON text.
func CompileInsert(table string, payload map[string]json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", dialectErrf("insert payload must not be empty")
	}
	cols := make([]string, 0, len(payload))
	for col := range payload {
		cols = append(cols, col)
	}

	var buf sqlbuf.Buffer
	buf.WriteString("INSERT INTO ").WriteString(quoteIdentifier(table)).WriteString(" (")
	for i, col := range cols {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(quoteIdentifier(col))
	}
	buf.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			buf.WriteString(", ")
		}
		lit, err := literalToSQL(payload[col], true)
		if err != nil {
			return "", err
		}
		buf.WriteString(lit)
	}
	buf.WriteString(")")
	return buf.Coalesce(), nil
}

// UpdatePayload is the {updates:[...]} document accepted by update.
type UpdatePayload struct {
	Updates []UpdateEntry `json:"updates"`
}

// UpdateEntry is one element of an update payload's updates array.
// At least one of Values, Expressions, JSONProperties is set, and any
// combination of them compiles into one SET list; the
// documented quoting inconsistency between Values (string-literal quoted)
// and Expressions (passed through raw, as the name implies) is preserved
// here rather than unified — see the design notes for why.
type UpdateEntry struct {
	Values        map[string]json.RawMessage `json:"values,omitempty"`
	Expressions   map[string]string          `json:"expressions,omitempty"`
	JSONProperties []JSONPropertyUpdate       `json:"json_properties,omitempty"`
	Condition     *WhereNode                 `json:"condition,omitempty"`
	Where         *WhereNode                 `json:"where,omitempty"`
}

// JSONPropertyUpdate patches one key inside a jsonb column via jsonb_set.
type JSONPropertyUpdate struct {
	Column     string          `json:"column"`
	Properties []string        `json:"properties"`
	Value      json.RawMessage `json:"value"`
}

// CompileUpdate compiles an update payload into one or more UPDATE
// statements, one per entry (entries may target disjoint rows via their
// own condition/where, so they cannot always be merged into a single
// statement).
func CompileUpdate(table string, payload UpdatePayload) ([]string, error) {
	if len(payload.Updates) == 0 {
		return nil, dialectErrf("update payload must contain at least one entry in 'updates'")
	}
	stmts := make([]string, 0, len(payload.Updates))
	for _, entry := range payload.Updates {
		stmt, err := compileUpdateEntry(table, entry)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func compileUpdateEntry(table string, entry UpdateEntry) (string, error) {
	var assignments []string

	// values: string-literal quoted via the shared literal renderer, save
	// for the documented bare-function-call carve-out.
	cols := make([]string, 0, len(entry.Values))
	for col := range entry.Values {
		cols = append(cols, col)
	}
	for _, col := range cols {
		lit, err := literalToSQL(entry.Values[col], true)
		if err != nil {
			return "", err
		}
		assignments = append(assignments, fmt.Sprintf("%s = %s", quoteColumn(col), lit))
	}

	// expressions: passed through exactly as supplied, unquoted — callers
	// are expected to write a complete SQL expression (e.g. "value + 1").
	exprCols := make([]string, 0, len(entry.Expressions))
	for col := range entry.Expressions {
		exprCols = append(exprCols, col)
	}
	for _, col := range exprCols {
		assignments = append(assignments, fmt.Sprintf("%s = %s", quoteColumn(col), entry.Expressions[col]))
	}

	for _, jp := range entry.JSONProperties {
		if len(jp.Properties) == 0 {
			return "", dialectErrf("json_properties entry requires properties")
		}
		pathLiteral := "{" + strings.Join(jp.Properties, ",") + "}"
		valueJSON, err := jsonbSetValue(jp.Value)
		if err != nil {
			return "", err
		}
		assignments = append(assignments, fmt.Sprintf(
			"%s = jsonb_set(%s, %s, %s, true)",
			quoteColumn(jp.Column), quoteColumn(jp.Column), quoteStringLiteral(pathLiteral), valueJSON,
		))
	}

	if len(assignments) == 0 {
		return "", dialectErrf("update entry must set values, expressions, or json_properties")
	}

	var buf sqlbuf.Buffer
	buf.WriteString("UPDATE ").WriteString(quoteIdentifier(table)).WriteString(" SET ").WriteString(strings.Join(assignments, ", "))

	cond := entry.Condition
	if cond == nil {
		cond = entry.Where
	}
	if cond != nil {
		whereSQL, err := compileWhere(cond)
		if err != nil {
			return "", err
		}
		buf.WriteString(" WHERE ").WriteString(whereSQL)
	}
	return buf.Coalesce(), nil
}

// jsonbSetValue renders a raw JSON value as the third argument to
// jsonb_set, which itself expects a jsonb literal.
func jsonbSetValue(raw json.RawMessage) (string, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", dialectErrf("invalid json_properties value: %v", err)
	}
	b, err := json.Marshal(probe)
	if err != nil {
		return "", err
	}
	return quoteStringLiteral(string(b)) + "::jsonb", nil
}

// CompileDelete compiles a delete condition into a DELETE statement. A
// missing or empty where clause is rejected: an unconditional delete would
// silently truncate the table, a documented invariant violation.
func CompileDelete(table string, where *WhereNode) (string, error) {
	if where == nil {
		return "", dialectErrf("JSON does not contain where clause")
	}
	whereSQL, err := compileWhere(where)
	if err != nil {
		return "", err
	}
	if whereSQL == "" {
		return "", dialectErrf("JSON does not contain where clause")
	}
	var buf sqlbuf.Buffer
	buf.WriteString("DELETE FROM ").WriteString(quoteIdentifier(table)).WriteString(" WHERE ").WriteString(whereSQL)
	return buf.Coalesce(), nil
}
