package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// envelope carries the per-entry expiry alongside the value, since the
// bucket TTL only bounds the maximum age
type envelope struct {
	ExpiresAt time.Time       `json:"expiresAt,omitzero"`
	Value     json.RawMessage `json:"value"`
}

// NATS is a Store backed by a JetStream KeyValue bucket. Keys may contain
// only [-/_=.a-zA-Z0-9].
type NATS struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// NewNATS opens (or creates) the named bucket with maxAge as its TTL
func NewNATS(ctx context.Context, js jetstream.JetStream, bucket string, maxAge time.Duration) (*NATS, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "confidential-planner tasks and plans",
		TTL:         maxAge,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("open key value bucket %q: %w", bucket, err)
	}
	return &NATS{kv: kv, now: time.Now}, nil
}

func (n *NATS) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: json.RawMessage(value)}
	if ttl > 0 {
		env.ExpiresAt = n.now().Add(ttl).UTC()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode entry %q: %w", key, err)
	}

	if _, err := n.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(e.Value(), &env); err != nil {
		return nil, fmt.Errorf("decode entry %q: %w", key, err)
	}
	if !env.ExpiresAt.IsZero() && !n.now().Before(env.ExpiresAt) {
		return nil, ErrNotFound
	}
	return env.Value, nil
}
