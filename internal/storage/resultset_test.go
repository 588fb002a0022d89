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
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestDecodeCell_BPCharTrimsTrailingSpaces(t *testing.T) {
	fd := pgx.FieldDescription{DataTypeOID: pgtype.BPCharOID}
	got, err := decodeCell(fd, "abc   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeCell_TextAndVarcharAreNotTrimmed(t *testing.T) {
	for _, oid := range []uint32{pgtype.TextOID, pgtype.VarcharOID} {
		fd := pgx.FieldDescription{DataTypeOID: oid}
		got, err := decodeCell(fd, "abc   ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "abc   " {
			t.Fatalf("expected trailing spaces preserved for OID %d, got %q", oid, got)
		}
	}
}

func TestDecodeCell_NilPassesThrough(t *testing.T) {
	fd := pgx.FieldDescription{DataTypeOID: pgtype.BPCharOID}
	got, err := decodeCell(fd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
