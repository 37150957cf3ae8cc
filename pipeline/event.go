package pipeline

import (
	"context"
	"errors"
	"time"
)

// EventType discriminates progress events on the wire
type EventType string

const (
	EventInit       EventType = "init"
	EventStart      EventType = "start"
	EventAnalyzing  EventType = "analyzing"
	EventGenerating EventType = "generating"
	EventStage      EventType = "stage"
	EventProgress   EventType = "progress"
	EventSuccess    EventType = "success"
	EventError      EventType = "error"
	EventComplete   EventType = "complete"
)

// Payload is the body of a progress event
type Payload struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
	Stage    string `json:"stage,omitempty"`
	TaskID   string `json:"taskId,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Event is one progress notification. Events are transient and never stored.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEvent creates an event stamped with the current UTC time
func NewEvent(typ EventType, progress int, message string) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload: Payload{
			Message:  message,
			Progress: progress,
		},
	}
}

// Terminal reports whether no further events follow this one on a stream
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Reporter delivers one progress event to a caller
type Reporter interface {
	Report(ctx context.Context, ev Event) error
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, ev Event) error

func (f ReporterFunc) Report(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Reporters fans one event out to every reporter in order
type Reporters []Reporter

func (rs Reporters) Report(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
