package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tinfoilsh/confidential-planner/publish"
)

// Tracker is the single writer for one task id. It validates transitions,
// keeps progress non-decreasing, persists the full record on every change,
// and announces each snapshot on the publish channel.
type Tracker struct {
	mu        sync.Mutex
	store     *Store
	publisher publish.Publisher
	now       func() time.Time
	task      Task
	history   []StateTransition
	started   map[Status]time.Time
}

// NewTracker prepares a tracker for id; nothing is written until Create
func NewTracker(store *Store, id string, publisher publish.Publisher) *Tracker {
	return &Tracker{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		task:      Task{ID: id},
		started:   make(map[Status]time.Time),
	}
}

func (t *Tracker) ID() string {
	return t.task.ID
}

// Create writes the initial queued record
func (t *Tracker) Create(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.task.Status != "" {
		return fmt.Errorf("task %s already created", t.task.ID)
	}

	now := t.now().UTC()
	next := t.task
	next.Status = StatusQueued
	next.ProgressMessage = "Task queued"
	next.CreatedAt = now
	next.UpdatedAt = now
	return t.commit(ctx, next, nil)
}

// Progress moves the task to processing. Lower percentages than already
// recorded keep the recorded value.
func (t *Tracker) Progress(ctx context.Context, pct int, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, tr, err := t.transition(StatusProcessing)
	if err != nil {
		return err
	}
	next.Progress = max(next.Progress, min(pct, 100))
	next.ProgressMessage = message
	return t.commit(ctx, next, tr)
}

// Complete records success with a reference to the stored result
func (t *Tracker) Complete(ctx context.Context, resultRef string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, tr, err := t.transition(StatusCompleted)
	if err != nil {
		return err
	}
	completed := next.UpdatedAt
	next.Progress = 100
	next.ProgressMessage = "Completed"
	next.ResultRef = resultRef
	next.CompletedAt = &completed
	return t.commit(ctx, next, tr)
}

// Fail records the error. Progress keeps its last value.
func (t *Tracker) Fail(ctx context.Context, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, tr, err := t.transition(StatusFailed)
	if err != nil {
		return err
	}
	completed := next.UpdatedAt
	next.Error = cause.Error()
	next.ProgressMessage = "Failed"
	next.CompletedAt = &completed
	return t.commit(ctx, next, tr)
}

// Snapshot returns the current record
func (t *Tracker) Snapshot() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.task
}

// History returns all status transitions after creation
func (t *Tracker) History() []StateTransition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StateTransition(nil), t.history...)
}

// Elapsed returns the time from creation to the last write
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.task.UpdatedAt.Sub(t.task.CreatedAt)
}

// transition returns a copy of the task moved to status, plus the history
// entry when the status changes. The tracker itself is left untouched.
func (t *Tracker) transition(to Status) (Task, *StateTransition, error) {
	next := t.task
	from := next.Status
	if from == "" {
		return next, nil, fmt.Errorf("task %s not created", next.ID)
	}
	if !CanTransition(from, to) {
		return next, nil, fmt.Errorf("invalid task transition from %s to %s", from, to)
	}

	now := t.now().UTC()
	next.Status = to
	next.UpdatedAt = now
	if from == to {
		return next, nil, nil
	}
	return next, &StateTransition{
		From:      from,
		To:        to,
		Progress:  t.task.Progress,
		Timestamp: now,
	}, nil
}

// commit persists next and only then adopts it as the current record.
// Must be called with mu held.
func (t *Tracker) commit(ctx context.Context, next Task, tr *StateTransition) error {
	if err := t.store.Put(ctx, next); err != nil {
		log.WithField("task", next.ID).Errorf("Failed to write task record: %v", err)
		return fmt.Errorf("write task %s: %w", next.ID, err)
	}

	t.task = next
	if tr != nil {
		t.history = append(t.history, *tr)
		t.started[tr.To] = tr.Timestamp
	} else if _, ok := t.started[next.Status]; !ok {
		t.started[next.Status] = next.UpdatedAt
	}
	publish.Forget(ctx, t.publisher, publish.TaskSubject(next.ID), next)
	return nil
}

// Duration returns how long the task spent in status, up to now if it is
// still the current non-terminal status
func (t *Tracker) Duration(status Status) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	started, ok := t.started[status]
	if !ok {
		return 0
	}
	for _, tr := range t.history {
		if tr.From == status {
			return tr.Timestamp.Sub(started)
		}
	}
	if t.task.Status == status && !status.Terminal() {
		return t.now().Sub(started)
	}
	return 0
}
