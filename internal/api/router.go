// Package api serves the dashboard endpoints: flight rollups, squawk
// transition reports, position statistics, coverage records, service status,
// and the WebSocket event stream.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skyward/flighttrack/pkg/logger"
)

// Router builds the HTTP routing tree
type Router struct {
	handler *Handler
	logger  *logger.Logger
}

// NewRouter creates a Router around a Handler
func NewRouter(handler *Handler, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the assembled HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/flights", rt.handler.GetFlights)
		r.Get("/squawks", rt.handler.GetSquawks)
		r.Get("/stats/positions", rt.handler.GetPositionStats)
		r.Get("/coverage", rt.handler.GetCoverage)
		r.Get("/status", rt.handler.GetStatus)
		r.Get("/digest", rt.handler.GetDigest)
		r.Get("/health", rt.handler.GetHealth)
	})
	r.Get("/ws", rt.handler.HandleWebSocket)

	return r
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes a JSON error response
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
