package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter mounts every handler of s. metricsHandler may be nil.
func NewRouter(s *Server, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, s.instrument, RecoveryMiddleware)

	r.Get("/health", HandleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Post("/travel-plan", s.HandleTravelPlan)
		r.Post("/travel-plan/stream", s.HandleTravelPlanStream)
		r.Post("/travel-plan/async", s.HandleTravelPlanAsync)
		r.Post("/travel-guide", s.HandleTravelGuide)
		r.Get("/tasks/{taskId}", s.HandleGetTask)
		r.Get("/travel-plans/{planId}", s.HandleGetPlan)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"request_id": middleware.GetReqID(r.Context()),
			"elapsed":    time.Since(started).Round(time.Millisecond),
		}).Info("Request served")
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.HTTPRequest(route, status)
	})
}
