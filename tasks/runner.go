package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tinfoilsh/confidential-planner/publish"
)

// Work is the detached body of a task. It returns a reference to its
// stored result.
type Work func(ctx context.Context, t *Tracker) (resultRef string, err error)

// Observer receives task outcomes, e.g. for metrics
type Observer interface {
	TaskFinished(status string, queued, total time.Duration)
}

// Handle follows one submitted task
type Handle struct {
	tracker *Tracker
	done    chan struct{}
	err     error
}

func (h *Handle) ID() string {
	return h.tracker.ID()
}

// Done is closed after the terminal record has been written
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the work error; only valid after Done is closed
func (h *Handle) Err() error {
	return h.err
}

func (h *Handle) Snapshot() Task {
	return h.tracker.Snapshot()
}

// Runner starts work on goroutines that outlive the submitting request
type Runner struct {
	store     *Store
	publisher publish.Publisher
	observer  Observer
	wg        sync.WaitGroup
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

func WithPublisher(p publish.Publisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

func NewRunner(store *Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:     store,
		publisher: publish.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the task record store
func (r *Runner) Store() *Store {
	return r.store
}

// Submit writes a queued record and starts work in the background. The
// work context carries ctx's values but not its cancellation; a client
// going away does not stop the task.
func (r *Runner) Submit(ctx context.Context, work Work) (*Handle, error) {
	tracker := NewTracker(r.store, uuid.NewString(), r.publisher)
	if err := tracker.Create(ctx); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	h := &Handle{tracker: tracker, done: make(chan struct{})}

	r.wg.Add(1)
	go r.execute(context.WithoutCancel(ctx), h, work)

	log.WithField("task", h.ID()).Info("Task queued")
	return h, nil
}

func (r *Runner) execute(ctx context.Context, h *Handle, work Work) {
	defer r.wg.Done()
	defer close(h.done)

	logger := log.WithField("task", h.ID())

	defer func() {
		if p := recover(); p != nil {
			h.err = fmt.Errorf("task panicked: %v", p)
			logger.Errorf("Recovered from panic: %v", p)
			if err := h.tracker.Fail(ctx, h.err); err != nil {
				logger.Errorf("Failed to record task failure: %v", err)
			}
			r.observe(h.tracker)
		}
	}()

	ref, err := work(ctx, h.tracker)
	if err != nil {
		h.err = err
		logger.Errorf("Task failed: %v", err)
		if ferr := h.tracker.Fail(ctx, err); ferr != nil {
			logger.Errorf("Failed to record task failure: %v", ferr)
		}
	} else {
		if cerr := h.tracker.Complete(ctx, ref); cerr != nil {
			h.err = cerr
			logger.Errorf("Failed to record task completion: %v", cerr)
		} else {
			logger.WithField("result", ref).Infof("Task completed in %v", h.tracker.Elapsed().Round(time.Millisecond))
		}
	}
	r.observe(h.tracker)
}

func (r *Runner) observe(t *Tracker) {
	if r.observer == nil {
		return
	}
	snap := t.Snapshot()
	r.observer.TaskFinished(string(snap.Status), t.Duration(StatusQueued), t.Elapsed())
}

// Wait blocks until every submitted task has finished or ctx is done
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
