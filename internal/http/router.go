// Package http exposes the capture session API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"speech-capture-service/internal/observability"
	"speech-capture-service/internal/observability/metrics"
	"speech-capture-service/internal/orchestrator"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(o *orchestrator.Orchestrator) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger(metrics.DefaultMetrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &sessionHandler{orchestrator: o}

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.create)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/audio", h.feedAudio)
			r.Post("/stop", h.stop)
		})
	})

	return r
}
