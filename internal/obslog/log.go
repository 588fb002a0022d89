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

// Package obslog wires the structured logger shared by every component.
// The log level is a deployment concern set once at process startup; no
// component is permitted to raise it globally at runtime (the reference
// design's debug-print FIXME is deleted outright, not reproduced).
package obslog

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a component-scoped logger writing to stderr. level is parsed
// with zerolog.ParseLevel; an unrecognised level falls back to "info".
func New(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewConsole builds a human-readable logger for local/demo use, otherwise
// identical to New.
func NewConsole(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
