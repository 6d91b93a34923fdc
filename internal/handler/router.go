package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter builds the API router with the global middleware stack.
func NewRouter(h *RosterHandler, log *slog.Logger, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)

	r.Get("/health", Health(checks))

	r.Route("/rosters", func(r chi.Router) {
		r.Post("/", h.CreateRoster)
		r.Get("/{id}", h.GetRoster)
		r.Patch("/{id}", h.EditRoster)
		r.Delete("/{id}", h.CancelRoster)
		r.Post("/{id}/claim", h.Claim)
		r.Post("/{id}/release", h.Release)
		r.Post("/{id}/clear", h.Clear)
		r.Post("/{id}/prune", h.Prune)
		r.Post("/{id}/absent", h.Absent)
		r.Post("/{id}/alert", h.Alert)
		r.Get("/{id}/watch", h.Watch)
	})
	r.Get("/participants/{participant}/rosters", h.ParticipantRosters)
	r.Post("/compositions", h.ImportComposition)

	return r
}

// Health handles GET /health
// Runs every check and answers 503 when any fails.
func Health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logging.FromContext(ctx).Warn("health check failed", "check", name, "error", err)
				status[name] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}
