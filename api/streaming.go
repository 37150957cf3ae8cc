package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tinfoilsh/confidential-planner/pipeline"
)

// ErrStreamClosed is returned for frames dropped after the peer went away
var ErrStreamClosed = errors.New("stream closed")

// SSEEmitter writes progress events as Server-Sent Events. It is safe for
// use from the detached pipeline goroutine and the handler at once.
type SSEEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEEmitter creates a new SSE emitter from a response writer
func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSEEmitter{w: w, flusher: flusher}, nil
}

// Report writes one event frame. After the first write error or a terminal
// event every later frame is dropped.
func (e *SSEEmitter) Report(_ context.Context, ev pipeline.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		e.closed = true
		return err
	}
	e.flusher.Flush()
	if ev.Terminal() {
		e.closed = true
	}
	return nil
}

// Emit is shorthand for reporting a new event
func (e *SSEEmitter) Emit(typ pipeline.EventType, progress int, message string) error {
	return e.Report(context.Background(), pipeline.NewEvent(typ, progress, message))
}

// EmitError emits a terminal error event carrying the typed error body
func (e *SSEEmitter) EmitError(err error) error {
	_, body := pipeline.ErrorResponse(err)
	ev := pipeline.NewEvent(pipeline.EventError, 0, err.Error())
	ev.Payload.Data = body["error"]
	return e.Report(context.Background(), ev)
}

// Close stops all further writes. The response writer must not be used
// once the handler has returned.
func (e *SSEEmitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Closed reports whether the emitter has stopped writing
func (e *SSEEmitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

var _ pipeline.Reporter = (*SSEEmitter)(nil)
