package pipeline

import (
	"github.com/tidwall/gjson"
)

// FailurePolicy decides what a failed stage does to the rest of the run
type FailurePolicy int

const (
	// Abort stops the run and surfaces the stage error
	Abort FailurePolicy = iota
	// SubstituteDefault records the stage's default value and continues
	SubstituteDefault
)

func (p FailurePolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case SubstituteDefault:
		return "substitute_default"
	default:
		return "unknown"
	}
}

// ProgressRange is the slice of overall progress a stage covers
type ProgressRange struct {
	Start int
	End   int
}

// At interpolates linearly: step i of n within the range
func (r ProgressRange) At(i, n int) int {
	if n <= 0 {
		return r.End
	}
	return r.Start + (r.End-r.Start)*i/n
}

// Split divides the range into n consecutive sub-ranges
func (r ProgressRange) Split(n int) []ProgressRange {
	out := make([]ProgressRange, n)
	for i := range out {
		out[i] = ProgressRange{Start: r.At(i, n), End: r.At(i+1, n)}
	}
	return out
}

// Stage declares one bounded unit of backend generation work. Stages are
// declared once per pipeline definition and not mutated while running.
type Stage struct {
	Name string
	// Kind groups repeated sub-stages; consecutive stages of the same kind
	// are spaced by the runner's inter-stage delay.
	Kind        string
	MaxTokens   int64
	Progress    ProgressRange
	Policy      FailurePolicy
	Message     string
	DoneMessage string

	// Prompt renders the stage prompt from prior-stage outputs.
	Prompt func(acc Accumulator) string
	// Parse maps the stage's JSON object to its value. It must not fail:
	// missing or mistyped fields take their zero value.
	Parse func(doc gjson.Result, acc Accumulator) (any, Accumulator)
	// Default is recorded when the stage fails under SubstituteDefault.
	Default func() any
}

// StageResult is the outcome of one stage
type StageResult struct {
	Stage     string
	Succeeded bool
	Value     any
	// RawText is kept only when the stage failed after the backend answered
	RawText string
	Err     error
}
