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

package sqlbuf

import "testing"

func TestBuffer_EmptyInitially(t *testing.T) {
	var b Buffer
	if !b.IsEmpty() {
		t.Fatalf("expected new buffer to be empty")
	}
}

func TestBuffer_AppendsLeftToRight(t *testing.T) {
	var b Buffer
	b.WriteString("SELECT ").WriteString("* FROM t WHERE id = ").WriteInt(42).WriteString(" AND score > ").WriteFloat(1.5).WriteByte(';')
	got := b.Coalesce()
	want := "SELECT * FROM t WHERE id = 42 AND score > 1.5;"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if b.IsEmpty() {
		t.Fatalf("expected non-empty after writes")
	}
}
