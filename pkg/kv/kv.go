// Package kv is the key-value cache used for vector index pointers, encrypted
// index configs and project pointer caches.
package kv

import (
	"context"
	"time"
)

// Store is a string key-value store with per-key TTL. A zero TTL means the
// key never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
