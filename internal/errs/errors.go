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

// Package errs defines the typed error kinds shared across the storage,
// ingest and OMF components, and the Sink collaborator that replaces
// the reference design's process-global error channel.
package errs

import "fmt"

// Kind classifies an error for callers that branch on error category rather
// than matching a specific message.
type Kind int

const (
	KindParse Kind = iota
	KindSchema
	KindType
	KindStorage
	KindTransportBadRequest
	KindTransportOther
	KindConfig
	KindShutdown
	KindInvalidDate
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindSchema:
		return "schema"
	case KindType:
		return "type"
	case KindStorage:
		return "storage"
	case KindTransportBadRequest:
		return "transport_bad_request"
	case KindTransportOther:
		return "transport_other"
	case KindConfig:
		return "config"
	case KindShutdown:
		return "shutdown"
	case KindInvalidDate:
		return "invalid_date"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned throughout this module.
// SQLState is populated only for KindStorage errors backed by a Postgres
// response.
type Error struct {
	Kind      Kind
	Operation string
	Reason    string
	SQLState  string
	Retriable bool
	cause     error
}

func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", e.Operation, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, operation, reason string) *Error {
	return &Error{Kind: kind, Operation: operation, Reason: reason}
}

func Wrap(kind Kind, operation string, cause error) *Error {
	return &Error{Kind: kind, Operation: operation, Reason: cause.Error(), cause: cause}
}

// sqlStateRemap maps SQLSTATE codes to a friendlier reason string. 22P02
// ("invalid text representation") is the one the reference design calls out
// explicitly; the table exists so adding more codes never requires touching
// call sites.
var sqlStateRemap = map[string]string{
	"22P02": "Unable to convert data to the required type",
}

// StorageError builds a KindStorage error, applying the SQLSTATE remap
// table when the code is recognised.
func StorageError(operation, sqlState string, cause error) *Error {
	reason := cause.Error()
	if friendly, ok := sqlStateRemap[sqlState]; ok {
		reason = friendly
	}
	return &Error{Kind: KindStorage, Operation: operation, Reason: reason, SQLState: sqlState, cause: cause}
}

// Sink receives storage-layer failures instead of a process-global
// singleton. Implementations must be safe for concurrent use.
type Sink interface {
	SetError(operation, reason string, retriable bool)
}

// NopSink discards every error; useful in tests that assert on returned
// errors rather than sink side effects.
type NopSink struct{}

func (NopSink) SetError(string, string, bool) {}
