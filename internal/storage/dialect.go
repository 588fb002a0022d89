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

// Package storage compiles the documented JSON query dialect to SQL and
// executes it against Postgres via pgx. It deliberately does not offer a
// general SQL translator — only the shapes named in the dialect — and does
// not validate aggregate operation names lexically (they pass through).
package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// funcCallPattern recognises insert/update values that should be passed
// through unquoted as SQL function calls (e.g. "now()", "nextval('seq')").
var funcCallPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*\(.*\)$`)

// IsFunctionCall reports whether s matches the documented "bare function
// call" shape used by insert/update/appendReadings value literalisation.
func IsFunctionCall(s string) bool {
	return funcCallPattern.MatchString(s)
}

// Condition is the top-level JSON query dialect payload accepted by
// retrieve/retrieveReadings/update/delete.
type Condition struct {
	Where      *WhereNode      `json:"where,omitempty"`
	Aggregate  json.RawMessage `json:"aggregate,omitempty"`
	Return     json.RawMessage `json:"return,omitempty"`
	Modifier   string          `json:"modifier,omitempty"`
	Group      json.RawMessage `json:"group,omitempty"`
	Sort       json.RawMessage `json:"sort,omitempty"`
	Timebucket *TimebucketSpec `json:"timebucket,omitempty"`
	Limit      *int            `json:"limit,omitempty"`
	Skip       *int            `json:"skip,omitempty"`
}

// WhereNode is a recursive condition tree. And/Or are appended in source
// order: the emitted SQL nests parentheses via recursion rather than
// flattening into a single precedence-ordered expression.
type WhereNode struct {
	Column    string          `json:"column"`
	Condition string          `json:"condition"`
	Value     json.RawMessage `json:"value"`
	And       *WhereNode      `json:"and,omitempty"`
	Or        *WhereNode      `json:"or,omitempty"`
}

// JSONPathSpec is the {json:{column,properties}} return/aggregate selector.
type JSONPathSpec struct {
	Column     string   `json:"column"`
	Properties []string `json:"-"`
}

type jsonPathSpecWire struct {
	Column     string          `json:"column"`
	Properties json.RawMessage `json:"properties"`
}

func (j *JSONPathSpec) UnmarshalJSON(data []byte) error {
	var wire jsonPathSpecWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	j.Column = wire.Column
	if len(wire.Properties) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(wire.Properties, &single); err == nil {
		j.Properties = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(wire.Properties, &many); err != nil {
		return fmt.Errorf("json.properties must be a string or array of strings: %w", err)
	}
	j.Properties = many
	return nil
}

// ReturnSpec is one element of the `return` array: either a bare column
// name or an object selecting one of the documented projection shapes.
type ReturnSpec struct {
	Bare     bool
	Column   string
	Format   string
	Timezone string
	Alias    string
	JSON     *JSONPathSpec
}

func (r *ReturnSpec) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		r.Bare = true
		r.Column = bare
		return nil
	}
	var wire struct {
		Column   string          `json:"column"`
		Format   string          `json:"format"`
		Timezone string          `json:"timezone"`
		Alias    string          `json:"alias"`
		JSON     *JSONPathSpec   `json:"json"`
		_        json.RawMessage `json:"-"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("invalid return element: %w", err)
	}
	r.Column = wire.Column
	r.Format = wire.Format
	r.Timezone = wire.Timezone
	r.Alias = wire.Alias
	r.JSON = wire.JSON
	return nil
}

// AggregateSpec is one element of the `aggregate` object/array.
type AggregateSpec struct {
	Operation string        `json:"operation"`
	Column    string        `json:"column"`
	JSON      *JSONPathSpec `json:"json"`
	Alias     string        `json:"alias"`
}

// GroupSpec is the `group` selector: a bare column name or an object.
type GroupSpec struct {
	Column string
	Format string
	Alias  string
}

func (g *GroupSpec) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		g.Column = bare
		return nil
	}
	var wire struct {
		Column string `json:"column"`
		Format string `json:"format"`
		Alias  string `json:"alias"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("invalid group element: %w", err)
	}
	*g = GroupSpec(wire)
	return nil
}

// SortSpec is one element of the `sort` object/array.
type SortSpec struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// TimebucketSpec is the `timebucket` selector.
type TimebucketSpec struct {
	Timestamp string `json:"timestamp"`
	Size      int64  `json:"size"`
	Format    string `json:"format"`
	Alias     string `json:"alias"`
}

// DialectError is a SchemaError-kind condition produced by the compiler
// itself (as opposed to a StorageError from the database).
type DialectError struct {
	Msg string
}

func (e *DialectError) Error() string { return e.Msg }

func dialectErrf(format string, args ...interface{}) error {
	return &DialectError{Msg: fmt.Sprintf(format, args...)}
}

// isNumericLiteral reports whether s parses as a number, in which case a
// column identifier is emitted unquoted (enabling e.g. "WHERE 1 = 1").
func isNumericLiteral(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// quoteColumn renders a column identifier per the numeric-literal carve-out.
func quoteColumn(col string) string {
	if isNumericLiteral(col) {
		return col
	}
	return `"` + strings.ReplaceAll(col, `"`, `""`) + `"`
}

// literalToSQL renders a JSON scalar/array/object value as a SQL literal.
// When allowFunctionCall is true, a bare string matching IsFunctionCall is
// passed through unquoted (insert/update/appendReadings value semantics).
func literalToSQL(raw json.RawMessage, allowFunctionCall bool) (string, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", dialectErrf("invalid literal: %v", err)
	}
	return literalValueToSQL(probe, allowFunctionCall)
}

func literalValueToSQL(v interface{}, allowFunctionCall bool) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case string:
		if allowFunctionCall && IsFunctionCall(t) {
			return t, nil
		}
		return quoteStringLiteral(t), nil
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return quoteStringLiteral(string(b)), nil
	default:
		return "", dialectErrf("unsupported literal type %T", t)
	}
}

func quoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// compileCondition renders one where leaf. older/newer require an integer
// value; in/not in require a non-empty array of number/string.
func compileCondition(n *WhereNode) (string, error) {
	col := quoteColumn(n.Column)
	switch n.Condition {
	case "=", "<", ">", "<=", ">=", "!=":
		val, err := literalToSQL(n.Value, false)
		if err != nil {
			return "", err
		}
		return col + " " + n.Condition + " " + val, nil
	case "older", "newer":
		var seconds int64
		if err := json.Unmarshal(n.Value, &seconds); err != nil {
			return "", dialectErrf("the value of an %q condition must be an integer", n.Condition)
		}
		op := "<"
		if n.Condition == "newer" {
			op = ">"
		}
		return fmt.Sprintf("%s %s now() - interval '%d seconds'", col, op, seconds), nil
	case "in", "not in":
		var arr []interface{}
		if err := json.Unmarshal(n.Value, &arr); err != nil || len(arr) == 0 {
			return "", dialectErrf(`The "value" of a "in" condition must be an array and must not be empty.`)
		}
		parts := make([]string, len(arr))
		for i, item := range arr {
			lit, err := literalValueToSQL(item, false)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		op := "IN"
		if n.Condition == "not in" {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(parts, ", ")), nil
	default:
		return "", dialectErrf("unsupported where condition %q", n.Condition)
	}
}

// compileWhere renders the full recursive where tree.
func compileWhere(n *WhereNode) (string, error) {
	if n == nil {
		return "", nil
	}
	expr, err := compileCondition(n)
	if err != nil {
		return "", err
	}
	if n.And != nil {
		rhs, err := compileWhere(n.And)
		if err != nil {
			return "", err
		}
		expr = fmt.Sprintf("(%s) AND (%s)", expr, rhs)
	}
	if n.Or != nil {
		rhs, err := compileWhere(n.Or)
		if err != nil {
			return "", err
		}
		expr = fmt.Sprintf("(%s) OR (%s)", expr, rhs)
	}
	return expr, nil
}

// CompileWhereClause is exported for callers (e.g. purgeReadings) that need
// to combine a hand-built predicate with a user-supplied where tree.
func CompileWhereClause(n *WhereNode) (string, error) {
	return compileWhere(n)
}
