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

package errs

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RateLimitedSink logs the first failure for a given operation and then
// suppresses repeats of that same operation for Window (5 minutes per the
// reference design) before logging again. It is the only place a process
// may reasonably share one instance across goroutines; callers that want
// isolation should construct their own rather than relying on a shared
// package-level default.
type RateLimitedSink struct {
	mu     sync.Mutex
	last   map[string]time.Time
	Window time.Duration
	Logger zerolog.Logger
}

func NewRateLimitedSink(logger zerolog.Logger) *RateLimitedSink {
	return &RateLimitedSink{last: make(map[string]time.Time), Window: 5 * time.Minute, Logger: logger}
}

func (s *RateLimitedSink) SetError(operation, reason string, retriable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if prev, ok := s.last[operation]; ok && now.Sub(prev) < s.Window {
		return
	}
	s.last[operation] = now
	s.Logger.Error().
		Str("operation", operation).
		Bool("retriable", retriable).
		Msg(reason)
}

var (
	defaultOnce sync.Once
	defaultSink *RateLimitedSink
)

// Default returns the package-level sink used by callers that do not inject
// one of their own (the cmd/south and cmd/north entry points). It exists so
// the isolation the reference design calls for — no module-level singleton
// reintroduced behind storage's back — stays confined to this one
// constructor rather than spread across the storage engine itself.
func Default() *RateLimitedSink {
	defaultOnce.Do(func() {
		defaultSink = NewRateLimitedSink(zerolog.Nop())
	})
	return defaultSink
}

// SetDefaultLogger rebinds the package-level default sink's logger; used by
// cmd/south and cmd/north during startup once the real logger is built.
func SetDefaultLogger(logger zerolog.Logger) {
	Default().Logger = logger
}
