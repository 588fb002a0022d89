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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// decodeCell converts one driver-returned value into a JSON-ready
// interface{}, dispatched by the field's OID rather than by a Go type
// switch on the driver value — pgx hands back different concrete Go types
// for the same logical column depending on how the query was built (text
// vs binary protocol, cast vs bare column), so the OID is the only stable
// signal.
func decodeCell(fd pgx.FieldDescription, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch fd.DataTypeOID {
	case pgtype.BoolOID:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return toInt64(v)
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return toFloat64(v)
	case pgtype.JSONOID, pgtype.JSONBOID:
		switch t := v.(type) {
		case []byte:
			return json.RawMessage(t), nil
		case string:
			return json.RawMessage(t), nil
		default:
			return v, nil
		}
	case pgtype.TimestampOID, pgtype.TimestamptzOID, pgtype.DateOID:
		return fmt.Sprintf("%v", v), nil
	case pgtype.TextOID, pgtype.VarcharOID:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case pgtype.BPCharOID:
		if s, ok := v.(string); ok {
			return strings.TrimRight(s, " "), nil
		}
	}
	return v, nil
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("unexpected integer representation %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unexpected numeric representation %T", v)
	}
}

// ResultSet is the {count, rows} shape every retrieve-family call returns.
type ResultSet struct {
	Count int                      `json:"count"`
	Rows  []map[string]interface{} `json:"rows"`
}

// DecodeRows consumes a pgx.Rows cursor into a ResultSet, applying
// decodeCell per field. The caller remains responsible for rows.Close().
func DecodeRows(rows pgx.Rows) (ResultSet, error) {
	fields := rows.FieldDescriptions()
	result := ResultSet{Rows: []map[string]interface{}{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return ResultSet{}, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			decoded, err := decodeCell(fd, values[i])
			if err != nil {
				return ResultSet{}, err
			}
			row[string(fd.Name)] = decoded
		}
		result.Rows = append(result.Rows, row)
		result.Count++
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	return result, nil
}
