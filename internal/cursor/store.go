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

// Package cursor tracks, per north-side service, the last reading id
// successfully forwarded, so a restarted scheduler resumes rather than
// re-sending or skipping rows.
package cursor

import "context"

// Store persists the north scheduler's forward progress.
type Store interface {
	// Load returns the last forwarded id for service. ok is false when no
	// cursor row exists yet (a fresh service starts from id 0).
	Load(ctx context.Context, service string) (lastID int64, ok bool, err error)
	Save(ctx context.Context, service string, lastID int64) error
}

const cursorTable = "cursor"
