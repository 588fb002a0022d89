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

package cursor

import (
	"fmt"
	"time"
)

// Options holds the knobs BuildStore needs for the adapters it supports.
type Options struct {
	RedisAddr string
	RedisTTL  time.Duration
}

// BuildStore constructs a Store from a string selector, mirroring the
// reference persister factory's adapter-by-name construction.
//
// Supported adapters:
//   - "", "postgres": PostgresStore directly against engine (default)
//   - "redis": PostgresStore fronted by a RedisStore cache, using
//     opts.RedisAddr; falls back to Postgres on a cache miss or Redis error
func BuildStore(adapter string, engine Engine, opts Options) (Store, error) {
	pg := NewPostgresStore(engine)
	switch adapter {
	case "", "postgres":
		return pg, nil
	case "redis":
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("cursor: redis adapter requires RedisAddr")
		}
		ttl := opts.RedisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		kv := NewGoRedisKV(opts.RedisAddr)
		return NewRedisStore(kv, pg, ttl), nil
	default:
		return nil, fmt.Errorf("cursor: unknown adapter %q", adapter)
	}
}
