// Package cache provides the keyed TTL store shared by task records and
// finished plans.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing or expired keys
var ErrNotFound = errors.New("cache: key not found")

// Store is a keyed value store with per-entry expiry. Set overwrites the
// whole value.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
