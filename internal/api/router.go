package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramonehamilton/GCG-Companion/internal/api/handlers"
	"github.com/ramonehamilton/GCG-Companion/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	// WebSocket endpoint; ?uid= limits the stream to one player's replies
	s.router.Get("/ws", s.wsHub.ServeWs)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "route not found")
	})

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		if s.reports != nil {
			reportHandler := handlers.NewReportHandler(s.reports, s.log)
			r.Route("/gcg", func(r chi.Router) {
				r.Post("/report", reportHandler.GetReport)
			})
		}

		systemHandler := handlers.NewSystemHandler(s.metrics, s.provider)
		r.Route("/system", func(r chi.Router) {
			r.Get("/version", systemHandler.GetVersion)
			r.Get("/metrics", systemHandler.GetMetrics)
		})
	})
}

// healthCheck returns the server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if s.wsHub.IsStopped() {
		status = "degraded"
	}
	response.Success(w, map[string]interface{}{
		"status":     status,
		"ws_clients": s.wsHub.ClientCount(),
	})
}
