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
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// KV abstracts the minimal surface RedisStore needs from a Redis client, so
// tests can substitute a fake without a live Redis.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// GoRedisKV wraps a real github.com/redis/go-redis/v9 client as a KV.
type GoRedisKV struct{ client *goredis.Client }

// NewGoRedisKV dials addr lazily (go-redis clients connect on first command).
func NewGoRedisKV(addr string) *GoRedisKV {
	return &GoRedisKV{client: goredis.NewClient(&goredis.Options{Addr: addr})}
}

func (g *GoRedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := g.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", errCacheMiss
	}
	return v, err
}

func (g *GoRedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return g.client.Set(ctx, key, value, ttl).Err()
}

var errCacheMiss = fmt.Errorf("cursor: redis cache miss")

func cursorKey(service string) string { return "cursor:" + service }

// RedisStore fronts a fallback Store with one low-latency Redis string key
// per service (cursorKey), exactly
// the way a cache-aside read path works: reads try Redis first and fall
// back to the source of truth on miss or error; writes go to both, Redis
// best-effort.
type RedisStore struct {
	kv       KV
	fallback Store
	ttl      time.Duration
}

// NewRedisStore fronts fallback with kv. ttl of zero means no expiry.
func NewRedisStore(kv KV, fallback Store, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, fallback: fallback, ttl: ttl}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, service string) (int64, bool, error) {
	s, err := r.kv.Get(ctx, cursorKey(service))
	if err == nil {
		id, parseErr := strconv.ParseInt(s, 10, 64)
		if parseErr == nil {
			return id, true, nil
		}
	}
	return r.fallback.Load(ctx, service)
}

// Save implements Store. The Postgres write is authoritative; the Redis
// write is best-effort and its failure does not fail the call.
func (r *RedisStore) Save(ctx context.Context, service string, lastID int64) error {
	if err := r.fallback.Save(ctx, service, lastID); err != nil {
		return err
	}
	_ = r.kv.Set(ctx, cursorKey(service), strconv.FormatInt(lastID, 10), r.ttl)
	return nil
}
