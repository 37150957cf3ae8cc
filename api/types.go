package api

import (
	"context"

	"github.com/tinfoilsh/confidential-planner/cache"
	"github.com/tinfoilsh/confidential-planner/metrics"
	"github.com/tinfoilsh/confidential-planner/pipeline"
	"github.com/tinfoilsh/confidential-planner/planner"
	"github.com/tinfoilsh/confidential-planner/store"
	"github.com/tinfoilsh/confidential-planner/tasks"
)

const (
	MaxRequestBodySize   = 1 << 20 // 1 MB
	EstimatedTaskSeconds = 120

	// UserIDHeader carries the caller's user id as a UUID; requests without
	// a valid one are attributed to AnonymousUserID
	UserIDHeader    = "X-User-Id"
	AnonymousUserID = "00000000-0000-0000-0000-000000000001"
)

// Planner generates plans and guides
type Planner interface {
	Plan(ctx context.Context, req planner.Request, reporter pipeline.Reporter) (*planner.TravelPlan, error)
	Guide(ctx context.Context, req planner.GuideRequest, reporter pipeline.Reporter) (*planner.TravelGuide, error)
}

// Archive stores finished plans durably
type Archive interface {
	Save(ctx context.Context, rec store.PlanRecord) error
}

// Server holds all dependencies for the HTTP handlers
type Server struct {
	Planner Planner
	Tasks   *tasks.Runner
	Plans   *cache.Typed[planner.TravelPlan]
	Archive Archive // optional
	Metrics *metrics.Metrics
}

// AsyncResponse acknowledges an accepted background generation
type AsyncResponse struct {
	TaskID               string       `json:"taskId"`
	Status               tasks.Status `json:"status"`
	EstimatedTimeSeconds int          `json:"estimatedTimeSeconds"`
	Message              string       `json:"message"`
}
