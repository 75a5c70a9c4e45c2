// Package cache provides a small byte-oriented key/value cache with explicit
// TTLs, backed either by process memory or by Redis.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values for a bounded time. A ttl of zero means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
