package tasks

import (
	"slices"
	"time"
)

// Status is the lifecycle phase of a task
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// validTransitions defines which status changes a tracker accepts
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// StateTransition records a status change
type StateTransition struct {
	From      Status
	To        Status
	Progress  int
	Timestamp time.Time
}
