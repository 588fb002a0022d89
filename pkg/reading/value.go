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

// Package reading defines the typed value cells and the Reading/Datapoint
// model shared by the ingest queue, the storage engine and the OMF emitter.
package reading

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindObject
	KindArray
	KindBuffer
)

// Value is a tagged union over the datapoint payload types the south plugins
// may produce. Only String, Integer and Float are forwarded north; Object,
// Array and Buffer are accepted and stored but silently skipped by the OMF
// emitter (see internal/omf).
type Value struct {
	kind   Kind
	str    string
	i64    int64
	f64    float64
	obj    json.RawMessage
	arr    []Value
	buffer []byte
}

func NewString(s string) Value  { return Value{kind: KindString, str: s} }
func NewInteger(i int64) Value  { return Value{kind: KindInteger, i64: i} }
func NewFloat(f float64) Value  { return Value{kind: KindFloat, f64: f} }
func NewObject(raw json.RawMessage) Value {
	return Value{kind: KindObject, obj: raw}
}
func NewArray(vs []Value) Value { return Value{kind: KindArray, arr: vs} }
func NewBuffer(b []byte) Value  { return Value{kind: KindBuffer, buffer: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) StringValue() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) IntValue() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i64, true
}

func (v Value) FloatValue() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f64, true
}

// Numeric reports whether the value is Integer or Float and returns it widened
// to float64; the OMF emitter's "Double" base type covers both.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i64), true
	case KindFloat:
		return v.f64, true
	default:
		return 0, false
	}
}

// ForwardableKind reports whether the OMF emitter must act on this value
// (String, Integer or Float); all other kinds are silently skipped per spec.
func (v Value) ForwardableKind() bool {
	switch v.kind {
	case KindString, KindInteger, KindFloat:
		return true
	default:
		return false
	}
}

// String renders the JSON literal representation of the value, suitable for
// direct emission into an OMF payload or a storage literal.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		b, _ := json.Marshal(v.str)
		return string(b)
	case KindInteger:
		return strconv.FormatInt(v.i64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindObject:
		if len(v.obj) == 0 {
			return "null"
		}
		return string(v.obj)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		b, _ := json.Marshal(json.RawMessage("[" + joinComma(parts) + "]"))
		_ = b
		return "[" + joinComma(parts) + "]"
	case KindBuffer:
		b, _ := json.Marshal(v.buffer)
		return string(b)
	default:
		return "null"
	}
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

// MarshalJSON lets a Value participate directly in encoding/json trees (used
// when building reading/result-set payloads).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInteger:
		return json.Marshal(v.i64)
	case KindFloat:
		return json.Marshal(v.f64)
	case KindObject:
		if len(v.obj) == 0 {
			return []byte("null"), nil
		}
		return v.obj, nil
	case KindArray:
		return json.Marshal(v.arr)
	case KindBuffer:
		return json.Marshal(v.buffer)
	default:
		return nil, fmt.Errorf("reading: unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON reconstructs a Value from a JSON literal. Objects and arrays
// are kept as raw/typed trees; numbers without a fractional part or exponent
// decode as Integer, everything else numeric decodes as Float.
func (v *Value) UnmarshalJSON(data []byte) error {
	var probe interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch t := probe.(type) {
	case string:
		*v = NewString(t)
	case float64:
		if looksIntegral(data) {
			i, err := strconv.ParseInt(string(data), 10, 64)
			if err == nil {
				*v = NewInteger(i)
				return nil
			}
		}
		*v = NewFloat(t)
	case []interface{}:
		var arr []Value
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*v = NewArray(arr)
	case map[string]interface{}:
		*v = NewObject(json.RawMessage(append([]byte(nil), data...)))
	case nil:
		*v = NewObject(nil)
	default:
		return fmt.Errorf("reading: unsupported JSON value %T", t)
	}
	return nil
}

func looksIntegral(data []byte) bool {
	for _, c := range data {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}
