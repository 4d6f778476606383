// Package api provides HTTP handlers for the support desk API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/identity"
	"github.com/ashureev/supportdesk/internal/session"
	"github.com/ashureev/supportdesk/internal/store"
)

// Evaluator scores pipeline output on request.
type Evaluator interface {
	EvaluateRecommendation(ctx context.Context, rec, summary string) (domain.RecommendationEvaluation, error)
	EvaluateRouting(ctx context.Context, summary, team string) (domain.RoutingEvaluation, error)
}

// ConnectionCounter reports live channel count.
type ConnectionCounter interface {
	Count() int
}

// Handler serves the JSON API.
type Handler struct {
	repo        store.Repository
	sessions    *session.Registry
	evaluator   Evaluator
	connections ConnectionCounter
}

// NewHandler creates a new Handler. repo and connections may be nil.
func NewHandler(repo store.Repository, sessions *session.Registry, evaluator Evaluator, connections ConnectionCounter) *Handler {
	return &Handler{
		repo:        repo,
		sessions:    sessions,
		evaluator:   evaluator,
		connections: connections,
	}
}

// RegisterRoutes registers API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Route("/session/{clientID}", func(r chi.Router) {
			r.Use(identity.Middleware)
			r.Get("/", h.GetSession)
			r.Get("/evaluation", h.GetEvaluation)
		})
		r.Route("/admin/tickets/{ticketID}", func(r chi.Router) {
			r.Get("/", h.GetTicket)
			r.Put("/status", h.UpdateTicketStatus)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Health reports process and database status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	}
	if h.connections != nil {
		body["connections"] = h.connections.Count()
	}

	switch {
	case h.repo == nil:
		body["database"] = "disabled"
	case h.repo.Ping(r.Context()) != nil:
		body["database"] = "unavailable"
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	default:
		body["database"] = "ok"
	}
	JSON(w, status, body)
}
