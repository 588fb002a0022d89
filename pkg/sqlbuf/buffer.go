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

// Package sqlbuf is an append-only text builder for the storage engine's
// SQL compiler. It is used strictly left-to-right: every compiled clause
// is appended once, in source order, and read back exactly once via
// Coalesce.
package sqlbuf

import (
	"strconv"
	"strings"
)

// Buffer accumulates SQL text. The zero value is ready to use.
type Buffer struct {
	b strings.Builder
}

// WriteString appends s verbatim.
func (buf *Buffer) WriteString(s string) *Buffer {
	buf.b.WriteString(s)
	return buf
}

// WriteInt appends the base-10 rendering of n.
func (buf *Buffer) WriteInt(n int64) *Buffer {
	buf.b.WriteString(strconv.FormatInt(n, 10))
	return buf
}

// WriteFloat appends the shortest round-tripping rendering of f.
func (buf *Buffer) WriteFloat(f float64) *Buffer {
	buf.b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return buf
}

// WriteByte appends a single character.
func (buf *Buffer) WriteByte(c byte) *Buffer {
	buf.b.WriteByte(c)
	return buf
}

// IsEmpty reports whether any bytes have been written.
func (buf *Buffer) IsEmpty() bool {
	return buf.b.Len() == 0
}

// Coalesce returns the full accumulated text. It is intended to be called
// exactly once per buffer, after which the buffer is typically discarded;
// calling it again simply returns the same text again (the builder is not
// reset), matching the "single-shot" idiom of the reference design without
// making a second call a trap.
func (buf *Buffer) Coalesce() string {
	return buf.b.String()
}
