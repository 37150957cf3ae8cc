package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/tinfoilsh/confidential-planner/jsonfix"
)

// DefaultInterStageDelay spaces consecutive stages of the same kind
const DefaultInterStageDelay = 500 * time.Millisecond

// Generator performs one bounded backend request
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int64) (string, error)
}

// Observer receives per-stage outcomes, e.g. for metrics
type Observer interface {
	StageFinished(stage, kind, outcome string, elapsed time.Duration)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Runner executes stages strictly in declared order
type Runner struct {
	generator Generator
	delay     time.Duration
	sleep     SleepFunc
	observer  Observer
}

// Option configures a Runner
type Option func(*Runner)

// WithInterStageDelay sets the pause between consecutive same-kind stages
func WithInterStageDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

// WithSleep replaces the sleep used for inter-stage delays (for testing)
func WithSleep(fn SleepFunc) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithObserver attaches a stage observer
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a runner that sends stage prompts to gen
func NewRunner(gen Generator, opts ...Option) *Runner {
	r := &Runner{
		generator: gen,
		delay:     DefaultInterStageDelay,
		sleep:     Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run is the outcome of a completed pipeline run
type Run struct {
	Results     []StageResult
	Accumulator Accumulator
}

// Value returns the value recorded for a stage, default or parsed
func (r *Run) Value(stage string) any {
	v, _ := r.Accumulator.Value(stage)
	return v
}

// Result returns the StageResult for a stage
func (r *Run) Result(stage string) (StageResult, bool) {
	for _, res := range r.Results {
		if res.Stage == stage {
			return res, true
		}
	}
	return StageResult{}, false
}

// Run executes every stage in order. An Abort-policy failure stops the run
// and returns a *PipelineError along with the results gathered so far; the
// reporter may be nil.
func (r *Runner) Run(ctx context.Context, stages []Stage, reporter Reporter) (*Run, error) {
	run := &Run{}
	acc := Accumulator{}

	for i, stage := range stages {
		if i > 0 && stage.Kind != "" && stage.Kind == stages[i-1].Kind {
			if err := r.sleep(ctx, r.delay); err != nil {
				return run, &PipelineError{Stage: stage.Name, Err: err}
			}
		}

		r.report(ctx, reporter, EventStage, stage, stage.Progress.Start, stage.Message)

		started := time.Now()
		value, next, raw, err := r.execute(ctx, stage, acc)
		elapsed := time.Since(started)

		logger := log.WithFields(log.Fields{
			"stage":   stage.Name,
			"policy":  stage.Policy.String(),
			"elapsed": elapsed.Round(time.Millisecond),
		})

		if err != nil {
			if stage.Policy == Abort || ctx.Err() != nil {
				logger.Errorf("Stage failed, aborting run: %v", err)
				r.observe(stage, "aborted", elapsed)
				run.Results = append(run.Results, StageResult{Stage: stage.Name, RawText: raw, Err: err})
				run.Accumulator = acc
				return run, &PipelineError{Stage: stage.Name, Err: err}
			}

			logger.Warnf("Stage failed, substituting default: %v", err)
			r.observe(stage, "defaulted", elapsed)
			var def any
			if stage.Default != nil {
				def = stage.Default()
			}
			acc = acc.WithValue(stage.Name, def)
			run.Results = append(run.Results, StageResult{Stage: stage.Name, Value: def, RawText: raw, Err: err})
		} else {
			logger.Info("Stage completed")
			r.observe(stage, "succeeded", elapsed)
			acc = next.WithValue(stage.Name, value)
			run.Results = append(run.Results, StageResult{Stage: stage.Name, Succeeded: true, Value: value})
		}

		done := stage.DoneMessage
		if done == "" {
			done = fmt.Sprintf("%s completed", stage.Name)
		}
		r.report(ctx, reporter, EventProgress, stage, stage.Progress.End, done)
	}

	run.Accumulator = acc
	return run, nil
}

func (r *Runner) execute(ctx context.Context, stage Stage, acc Accumulator) (any, Accumulator, string, error) {
	prompt := stage.Prompt(acc)

	raw, err := r.generator.Generate(ctx, prompt, stage.MaxTokens)
	if err != nil {
		return nil, acc, "", err
	}

	doc, err := Decode(raw)
	if err != nil {
		log.WithField("stage", stage.Name).Debugf("Undecodable output head=%q tail=%q", head(raw, 500), tail(raw, 500))
		return nil, acc, raw, err
	}

	value, next := stage.Parse(doc, acc)
	return value, next, "", nil
}

// Decode turns raw backend output into a JSON object: extraction, repair,
// a structural balance check, then the top-level object check.
func Decode(raw string) (gjson.Result, error) {
	candidate := jsonfix.Extract(raw)

	repaired, err := jsonfix.Repair(candidate)
	if errors.Is(err, jsonfix.ErrUnterminatedString) {
		return gjson.Result{}, &MalformedOutputError{Reason: "output truncated inside a string literal", Err: err}
	}

	if counts := jsonfix.Count(repaired); !counts.Balanced() {
		return gjson.Result{}, &TruncatedOutputError{Counts: counts}
	}

	doc, err := jsonfix.Object(repaired)
	if err != nil {
		return gjson.Result{}, &MalformedOutputError{Reason: "unparsable JSON", Err: err}
	}
	return doc, nil
}

func (r *Runner) report(ctx context.Context, reporter Reporter, typ EventType, stage Stage, progress int, message string) {
	if reporter == nil {
		return
	}
	ev := NewEvent(typ, progress, message)
	ev.Payload.Stage = stage.Name
	if err := reporter.Report(ctx, ev); err != nil {
		log.WithField("stage", stage.Name).Debugf("Progress report failed: %v", err)
	}
}

func (r *Runner) observe(stage Stage, outcome string, elapsed time.Duration) {
	if r.observer != nil {
		r.observer.StageFinished(stage.Name, stage.Kind, outcome, elapsed)
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
