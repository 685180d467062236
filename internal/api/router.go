package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter wires middleware and routes. Device IDs are MAC addresses;
// chi matches them as a single path segment.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware, s.accessLogMiddleware, s.recoveryMiddleware, limitBodyMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/status", s.handleGetDeviceStatus)
				r.Post("/commands", s.handleDeviceCommand)
				r.Post("/reconnect", s.handleReconnectDevice)
			})
		})

		r.Route("/scenarios/{id}", func(r chi.Router) {
			r.Post("/execute", s.handleExecuteScenario)
			r.Get("/executions", s.handleListExecutions)
		})
	})

	return r
}
