package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tinfoilsh/confidential-planner/cache"
	"github.com/tinfoilsh/confidential-planner/pipeline"
)

type mockObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (m *mockObserver) TaskFinished(status string, queued, total time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSubmitCreatesQueuedTaskFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore(cache.NewMemory(), time.Hour)
	runner := NewRunner(store)

	release := make(chan struct{})
	h, err := runner.Submit(ctx, func(ctx context.Context, tr *Tracker) (string, error) {
		<-release
		return "plan-1", nil
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	task, err := store.Get(ctx, h.ID())
	if err != nil {
		t.Fatalf("task should be readable immediately: %v", err)
	}
	if task.Status != StatusQueued {
		t.Errorf("expected queued, got %s", task.Status)
	}

	close(release)
	waitDone(t, h)

	task, _ = store.Get(ctx, h.ID())
	if task.Status != StatusCompleted || task.ResultRef != "plan-1" {
		t.Errorf("expected completed with plan-1, got %s %q", task.Status, task.ResultRef)
	}
	if h.Err() != nil {
		t.Errorf("unexpected error: %v", h.Err())
	}
}

func TestSubmitSurvivesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewStore(cache.NewMemory(), time.Hour)
	runner := NewRunner(store)

	started := make(chan struct{})
	h, err := runner.Submit(ctx, func(ctx context.Context, tr *Tracker) (string, error) {
		close(started)
		<-time.After(20 * time.Millisecond)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err := tr.Progress(ctx, 90, "Saving results"); err != nil {
			return "", err
		}
		return "plan-2", nil
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	<-started
	cancel()
	waitDone(t, h)

	if h.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed after caller cancel, got %s (%v)", h.Snapshot().Status, h.Err())
	}
}

func TestSubmitRecordsFailure(t *testing.T) {
	ctx := context.Background()
	store := NewStore(cache.NewMemory(), time.Hour)
	observer := &mockObserver{}
	runner := NewRunner(store, WithObserver(observer))

	boom := &pipeline.PipelineError{Stage: "basics", Err: errors.New("backend down")}
	h, _ := runner.Submit(ctx, func(ctx context.Context, tr *Tracker) (string, error) {
		NewReporter(tr).Report(ctx, pipeline.NewEvent(pipeline.EventProgress, 25, "basics"))
		return "", boom
	})
	waitDone(t, h)

	if !errors.Is(h.Err(), boom) {
		t.Errorf("expected work error, got %v", h.Err())
	}
	task, _ := store.Get(ctx, h.ID())
	if task.Status != StatusFailed {
		t.Errorf("expected failed, got %s", task.Status)
	}
	if task.Progress != MapProgress(25) {
		t.Errorf("failed task should keep progress %d, got %d", MapProgress(25), task.Progress)
	}
	if len(observer.statuses) != 1 || observer.statuses[0] != "failed" {
		t.Errorf("unexpected observed statuses %v", observer.statuses)
	}
}

func TestSubmitRecoversPanics(t *testing.T) {
	ctx := context.Background()
	store := NewStore(cache.NewMemory(), time.Hour)
	runner := NewRunner(store)

	h, _ := runner.Submit(ctx, func(ctx context.Context, tr *Tracker) (string, error) {
		panic("nil map")
	})
	waitDone(t, h)

	task, _ := store.Get(ctx, h.ID())
	if task.Status != StatusFailed {
		t.Errorf("expected failed after panic, got %s", task.Status)
	}
	if h.Err() == nil {
		t.Error("expected error after panic")
	}
}

func TestSubmitPublishesEachWrite(t *testing.T) {
	ctx := context.Background()
	pub := &MockPublisher{}
	runner := NewRunner(NewStore(cache.NewMemory(), time.Hour), WithPublisher(pub))

	h, _ := runner.Submit(ctx, func(ctx context.Context, tr *Tracker) (string, error) {
		tr.Progress(ctx, 50, "halfway")
		return "r", nil
	})
	waitDone(t, h)

	if pub.Count() != 3 {
		t.Errorf("expected queued, progress and completed publishes, got %d", pub.Count())
	}
}

func TestSubmitFailsWhenStoreUnavailable(t *testing.T) {
	runner := NewRunner(NewStore(failingStore{}, time.Hour))

	_, err := runner.Submit(context.Background(), func(ctx context.Context, tr *Tracker) (string, error) {
		t.Error("work must not run without a task record")
		return "", nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunnerWait(t *testing.T) {
	runner := NewRunner(NewStore(cache.NewMemory(), time.Hour))

	for range 3 {
		runner.Submit(context.Background(), func(ctx context.Context, tr *Tracker) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "r", nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Wait(ctx); err != nil {
		t.Errorf("Wait() error: %v", err)
	}
}
