package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Typed stores JSON-encoded values of T under a key prefix
type Typed[T any] struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// NewTyped creates a typed view; keys become prefix + "." + id
func NewTyped[T any](store Store, prefix string, ttl time.Duration) *Typed[T] {
	return &Typed[T]{store: store, prefix: prefix, ttl: ttl}
}

func (t *Typed[T]) Key(id string) string {
	return t.prefix + "." + id
}

func (t *Typed[T]) Put(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.Key(id), err)
	}
	return t.store.Set(ctx, t.Key(id), data, t.ttl)
}

// Get returns ErrNotFound for missing or expired ids
func (t *Typed[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	data, err := t.store.Get(ctx, t.Key(id))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", t.Key(id), err)
	}
	return v, nil
}
