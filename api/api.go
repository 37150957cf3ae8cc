package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tinfoilsh/confidential-planner/cache"
	"github.com/tinfoilsh/confidential-planner/pipeline"
	"github.com/tinfoilsh/confidential-planner/planner"
	"github.com/tinfoilsh/confidential-planner/store"
	"github.com/tinfoilsh/confidential-planner/tasks"
)

// RecoveryMiddleware catches panics and returns 500 instead of crashing
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Errorf("panic recovered: %v", err)
				jsonError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, message string, code int) {
	log.WithField("code", code).Warn(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func jsonErrorResponse(w http.ResponseWriter, code int, body map[string]any) {
	log.WithField("code", code).Warn("error response")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

func parseRequestBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &pipeline.ValidationError{Message: fmt.Sprintf("failed to read request: %v", err)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &pipeline.ValidationError{Field: typeErr.Field, Message: fmt.Sprintf("expected %s", typeErr.Type)}
		}
		return &pipeline.ValidationError{Message: fmt.Sprintf("failed to parse request: %v", err)}
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status, body := pipeline.ErrorResponse(err)
	jsonErrorResponse(w, status, body)
}

func userID(r *http.Request) string {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		return AnonymousUserID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.WithField("header", UserIDHeader).Debugf("Ignoring malformed user id: %v", err)
		return AnonymousUserID
	}
	return id.String()
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleTravelPlan generates a plan inline and returns it
func (s *Server) HandleTravelPlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req planner.Request
	if err := parseRequestBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	plan, err := s.Planner.Plan(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := s.Plans.Put(ctx, plan.ID, *plan); err != nil {
		log.WithField("plan", plan.ID).Warnf("Failed to cache plan: %v", err)
	}
	s.archive(ctx, userID(r), req, plan)

	writeJSON(w, http.StatusOK, plan)
}

// HandleTravelPlanAsync accepts a plan request and runs it in the background
func (s *Server) HandleTravelPlanAsync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req planner.Request
	if err := parseRequestBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h, err := s.Tasks.Submit(r.Context(), s.planWork(req, userID(r), nil, nil))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, AsyncResponse{
		TaskID:               h.ID(),
		Status:               tasks.StatusQueued,
		EstimatedTimeSeconds: EstimatedTaskSeconds,
		Message:              "Travel plan generation started",
	})
}

// HandleTravelPlanStream runs a plan as a task and streams its progress.
// If the client goes away the task keeps running and can be polled.
func (s *Server) HandleTravelPlanStream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req planner.Request
	if err := parseRequestBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	emitter, err := NewSSEEmitter(w)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var plan *planner.TravelPlan
	work := s.planWork(req, userID(r), emitter, &plan)

	h, err := s.Tasks.Submit(r.Context(), func(ctx context.Context, t *tasks.Tracker) (string, error) {
		created := pipeline.NewEvent(pipeline.EventInit, 0, "Task created")
		created.Payload.TaskID = t.ID()
		emitter.Report(ctx, created)
		emitter.Emit(pipeline.EventStart, 0, "Starting travel plan generation")
		emitter.Emit(pipeline.EventAnalyzing, 10, "Analyzing your preferences")
		emitter.Emit(pipeline.EventGenerating, 15, "Generating travel plan")
		return work(ctx, t)
	})
	if err != nil {
		emitter.EmitError(err)
		return
	}

	logger := log.WithField("task", h.ID())

	select {
	case <-h.Done():
	case <-r.Context().Done():
		emitter.Close()
		logger.Info("Client disconnected, task continues in background")
		return
	}

	if emitter.Closed() {
		logger.Info("Stream closed before the task finished, result left for polling")
		return
	}
	if err := h.Err(); err != nil {
		emitter.EmitError(err)
		return
	}

	success := pipeline.NewEvent(pipeline.EventSuccess, 100, "Travel plan generated")
	success.Payload.TaskID = h.ID()
	success.Payload.Data = plan
	emitter.Report(r.Context(), success)
	emitter.Emit(pipeline.EventComplete, 100, "Done")
}

// planWork is the task body shared by the async and streaming surfaces.
// extra, when set, also receives every raw pipeline event; out, when set,
// receives the finished plan before the task completes.
func (s *Server) planWork(req planner.Request, user string, extra pipeline.Reporter, out **planner.TravelPlan) tasks.Work {
	return func(ctx context.Context, t *tasks.Tracker) (string, error) {
		reporters := pipeline.Reporters{tasks.NewReporter(t)}
		if extra != nil {
			reporters = append(reporters, extra)
		}

		plan, err := s.Planner.Plan(ctx, req, reporters)
		if err != nil {
			return "", err
		}

		if err := t.Progress(ctx, 90, "Saving results"); err != nil {
			log.WithField("task", t.ID()).Warnf("Failed to record progress: %v", err)
		}
		if err := s.Plans.Put(ctx, plan.ID, *plan); err != nil {
			return "", fmt.Errorf("cache plan: %w", err)
		}
		s.archive(ctx, user, req, plan)

		if out != nil {
			*out = plan
		}
		return plan.ID, nil
	}
}

// archive persists the plan; failures are logged and never surface
func (s *Server) archive(ctx context.Context, user string, req planner.Request, plan *planner.TravelPlan) {
	if s.Archive == nil {
		return
	}

	rec, err := PlanRecord(user, req, plan)
	if err == nil {
		err = s.Archive.Save(ctx, rec)
	}
	if err != nil {
		perr := &pipeline.DownstreamPersistenceError{Target: "postgres", Err: err}
		log.WithField("plan", plan.ID).Error(perr)
	}
}

// PlanRecord converts a finished plan into its persisted row
func PlanRecord(user string, req planner.Request, plan *planner.TravelPlan) (store.PlanRecord, error) {
	data, err := json.Marshal(plan)
	if err != nil {
		return store.PlanRecord{}, fmt.Errorf("marshal plan: %w", err)
	}

	rec := store.PlanRecord{
		ID:                plan.ID,
		UserID:            user,
		CityID:            plan.CityID,
		CityName:          plan.CityName,
		CityImage:         plan.CityImage,
		Duration:          plan.Duration,
		BudgetLevel:       plan.Budget,
		TravelStyle:       plan.TravelStyle,
		Interests:         plan.Interests,
		DepartureLocation: req.DepartureLocation,
		PlanData:          data,
		CreatedAt:         plan.CreatedAt,
		UpdatedAt:         plan.CreatedAt,
	}
	if req.DepartureDate != nil {
		d := req.DepartureDate.Time
		rec.DepartureDate = &d
	}
	return rec, nil
}

// HandleGetTask returns the current snapshot of a task
func (s *Server) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskId")

	task, err := s.Tasks.Store().Get(r.Context(), id)
	if errors.Is(err, tasks.ErrNotFound) {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// HandleGetPlan returns a cached plan by id
func (s *Server) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "planId")

	plan, err := s.Plans.Get(r.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		jsonError(w, "travel plan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// HandleTravelGuide generates a city guide inline
func (s *Server) HandleTravelGuide(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req planner.GuideRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	guide, err := s.Planner.Guide(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, guide)
}
