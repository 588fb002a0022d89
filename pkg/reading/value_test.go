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

package reading

import (
	"encoding/json"
	"testing"
)

func TestValue_ForwardableKind(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NewString("x"), true},
		{NewInteger(1), true},
		{NewFloat(1.5), true},
		{NewObject(json.RawMessage(`{}`)), false},
		{NewArray(nil), false},
		{NewBuffer([]byte{1, 2}), false},
	}
	for _, c := range cases {
		if got := c.v.ForwardableKind(); got != c.want {
			t.Errorf("ForwardableKind(%v) = %v, want %v", c.v.Kind(), got, c.want)
		}
	}
}

func TestValue_Numeric(t *testing.T) {
	if f, ok := NewInteger(7).Numeric(); !ok || f != 7 {
		t.Fatalf("Numeric on Integer: got %v, %v", f, ok)
	}
	if f, ok := NewFloat(7.5).Numeric(); !ok || f != 7.5 {
		t.Fatalf("Numeric on Float: got %v, %v", f, ok)
	}
	if _, ok := NewString("x").Numeric(); ok {
		t.Fatalf("Numeric on String should report ok=false")
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	cases := []Value{
		NewString("hello"),
		NewInteger(42),
		NewFloat(3.25),
	}
	for _, v := range cases {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got Value
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Kind() != v.Kind() {
			t.Fatalf("kind mismatch: got %v want %v", got.Kind(), v.Kind())
		}
	}
}

func TestValue_StringLiteral(t *testing.T) {
	if got := NewInteger(5).String(); got != "5" {
		t.Fatalf("got %q", got)
	}
	if got := NewString("a\"b").String(); got != `"a\"b"` {
		t.Fatalf("got %q", got)
	}
}
