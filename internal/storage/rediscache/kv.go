/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package rediscache puts a read-through Redis cache in front of a storage.Store.
// Only page element lists are cached; every write that can change a list invalidates it.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the small key/value surface the cache needs.
type KV interface {
	// Get returns ok=false for a missing key.
	Get(ctx context.Context, key string) (val string, ok bool, err error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// RedisKV implements KV with go-redis.
type RedisKV struct {
	c *redis.Client
}

var _ KV = (*RedisKV)(nil)

// NewRedisKV connects lazily to addr; go-redis dials on first use.
func NewRedisKV(addr, password string, db int) *RedisKV {
	return &RedisKV{c: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// Ping verifies the connection.
func (r *RedisKV) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil // redis.Nil -> ok: false, err: nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return r.c.Set(ctx, key, val, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

func (r *RedisKV) Close() error { return r.c.Close() }
