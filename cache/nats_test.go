package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

type fakeKV struct {
	jetstream.KeyValue
	data map[string][]byte
}

func (f *fakeKV) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	f.data[key] = value
	return uint64(len(f.data)), nil
}

func (f *fakeKV) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func TestNATSRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	kv := &fakeKV{data: map[string][]byte{}}
	store := &NATS{kv: kv, now: clock.Now}

	if err := store.Set(ctx, "plan.abc", []byte(`{"id":"abc"}`), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, "plan.abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"id":"abc"}` {
		t.Errorf("unexpected value %s", got)
	}

	clock.Advance(time.Hour)
	if _, err := store.Get(ctx, "plan.abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestNATSMissingKey(t *testing.T) {
	store := &NATS{kv: &fakeKV{data: map[string][]byte{}}, now: time.Now}

	if _, err := store.Get(context.Background(), "task.missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNATSCorruptEntry(t *testing.T) {
	kv := &fakeKV{data: map[string][]byte{"task.1": []byte("not json")}}
	store := &NATS{kv: kv, now: time.Now}

	_, err := store.Get(context.Background(), "task.1")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("corrupt entries should not read as missing")
	}
}
