// Package cache defines the port interface for response caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching. The upstream adapter
// uses it to short-circuit repeated subscription and tag lookups.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
