package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/system/health", s.handleHealth)

		// WebSocket upgrade. Browsers cannot set an Authorization
		// header on a WebSocket dial, so auth is a single-use ticket
		// checked in the handler instead of the bearer middleware.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/system/info", s.handleInfo)

			// WS ticket requires authentication so the token never
			// appears in the WebSocket URL
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Telescope slot endpoints
			r.Route("/telescopes", func(r chi.Router) {
				r.Get("/", s.handleListTelescopes)
				r.Delete("/", s.handleDeleteAll)
				r.Post("/stop", s.handleStopAll)

				r.Route("/{slot}", func(r chi.Router) {
					r.Get("/", s.handleGetTelescope)
					r.Put("/", s.handlePutTelescope)
					r.Delete("/", s.handleDeleteTelescope)
					r.Post("/start", s.handleStartTelescope)
					r.Post("/stop", s.handleStopTelescope)
					r.Post("/goto", s.handleGoto)
					r.Post("/sync", s.handleSync)
				})
			})

			r.Get("/catalog/models", s.handleListModels)
			r.Get("/history", s.handleListHistory)
		})
	})

	return r
}
