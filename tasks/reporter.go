package tasks

import (
	"context"

	"github.com/tinfoilsh/confidential-planner/pipeline"
)

// Pipeline progress between pipelineStart and pipelineEnd is rescaled onto
// taskStart..taskEnd, leaving room for queueing below and saving above.
const (
	pipelineStart = 15
	pipelineEnd   = 85
	taskStart     = 10
	taskEnd       = 90
)

// MapProgress converts a pipeline percentage to a task percentage
func MapProgress(p int) int {
	p = min(max(p, pipelineStart), pipelineEnd)
	return taskStart + (p-pipelineStart)*(taskEnd-taskStart)/(pipelineEnd-pipelineStart)
}

// Reporter feeds stage and progress events into a tracker
type Reporter struct {
	tracker *Tracker
}

func NewReporter(t *Tracker) *Reporter {
	return &Reporter{tracker: t}
}

func (r *Reporter) Report(ctx context.Context, ev pipeline.Event) error {
	switch ev.Type {
	case pipeline.EventStage, pipeline.EventProgress:
		return r.tracker.Progress(ctx, MapProgress(ev.Payload.Progress), ev.Payload.Message)
	default:
		return nil
	}
}
