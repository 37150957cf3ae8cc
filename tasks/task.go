// Package tasks tracks the lifecycle of detached generation work in a
// TTL-bound store.
package tasks

import (
	"context"
	"time"

	"github.com/tinfoilsh/confidential-planner/cache"
)

// DefaultTTL bounds how long task records stay readable
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown or expired task ids
var ErrNotFound = cache.ErrNotFound

// Task is the polled snapshot of one unit of background work. Every write
// replaces the whole record.
type Task struct {
	ID              string     `json:"taskId"`
	Status          Status     `json:"status"`
	Progress        int        `json:"progress"`
	ProgressMessage string     `json:"progressMessage,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	ResultRef       string     `json:"resultRef,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Store reads and writes task records under "task.<id>"
type Store struct {
	records *cache.Typed[Task]
}

func NewStore(c cache.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{records: cache.NewTyped[Task](c, "task", ttl)}
}

func (s *Store) Put(ctx context.Context, t Task) error {
	return s.records.Put(ctx, t.ID, t)
}

func (s *Store) Get(ctx context.Context, id string) (Task, error) {
	return s.records.Get(ctx, id)
}
