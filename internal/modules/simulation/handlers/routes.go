package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SimulationTimeout bounds one simulation request. The engine stops at the
// deadline and returns a truncated result.
const SimulationTimeout = 120 * time.Second

// RegisterRoutes registers all simulation routes under /api/v1
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/simulations", func(r chi.Router) {
		r.Use(middleware.Timeout(SimulationTimeout))

		r.Post("/", h.HandleRunSimulation)
		r.Get("/defaults", h.HandleGetDefaults)
	})
}
