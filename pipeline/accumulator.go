package pipeline

import (
	"strings"
)

// Accumulator carries prior-stage outputs forward through a run. It is an
// immutable value: every With* method returns a modified copy, so a stage
// can never observe another stage's mutations.
type Accumulator struct {
	seen   []string
	values map[string]any
}

// Seen returns the referenced names collected so far, in first-seen order
func (a Accumulator) Seen() []string {
	out := make([]string, len(a.seen))
	copy(out, a.seen)
	return out
}

// WithSeen returns a copy with names added. Blank names and names already
// present (case-insensitively) are skipped.
func (a Accumulator) WithSeen(names ...string) Accumulator {
	seen := a.Seen()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || containsFold(seen, name) {
			continue
		}
		seen = append(seen, name)
	}
	a.seen = seen
	return a
}

// Value returns the value recorded for a completed stage
func (a Accumulator) Value(stage string) (any, bool) {
	v, ok := a.values[stage]
	return v, ok
}

// WithValue returns a copy with the stage's value recorded
func (a Accumulator) WithValue(stage string, v any) Accumulator {
	values := make(map[string]any, len(a.values)+1)
	for k, existing := range a.values {
		values[k] = existing
	}
	values[stage] = v
	a.values = values
	return a
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
