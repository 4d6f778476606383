package api

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/supportdesk/internal/conversation"
	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/identity"
)

// maxEvaluatedRecommendations caps evaluation calls per request.
const maxEvaluatedRecommendations = 3

// evaluationLocks prevents concurrent evaluations for the same client.
var evaluationLocks sync.Map

// EvaluationResponse is the body of GET /api/session/{clientID}/evaluation.
type EvaluationResponse struct {
	TicketID        string                            `json:"ticket_id"`
	Metadata        conversation.Metadata             `json:"metadata"`
	Recommendations []domain.RecommendationEvaluation `json:"recommendations"`
	Routing         *domain.RoutingEvaluation         `json:"routing,omitempty"`
}

// GetSession returns the client's session, creating it if needed.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	entry := h.sessions.GetOrCreate(r.Context(), clientID)
	JSON(w, http.StatusOK, entry.Snapshot())
}

// GetEvaluation scores the session's current recommendations and routing.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	entry, ok := h.sessions.Get(clientID)
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if h.evaluator == nil {
		Error(w, http.StatusServiceUnavailable, "evaluation unavailable")
		return
	}

	lock, _ := evaluationLocks.LoadOrStore(clientID, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	if !mutex.TryLock() {
		slog.Warn("Evaluation already in progress", "client_id", clientID)
		Error(w, http.StatusConflict, "evaluation_in_progress")
		return
	}
	defer func() {
		mutex.Unlock()
		evaluationLocks.Delete(clientID)
	}()

	snap := entry.Snapshot()
	recs := snap.Recommendations
	if len(recs) > maxEvaluatedRecommendations {
		recs = recs[:maxEvaluatedRecommendations]
	}

	resp := EvaluationResponse{
		TicketID:        snap.TicketID,
		Metadata:        conversation.Analyze(snap.ConversationHistory),
		Recommendations: make([]domain.RecommendationEvaluation, len(recs)),
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(2)
	for i, rec := range recs {
		g.Go(func() error {
			eval, err := h.evaluator.EvaluateRecommendation(ctx, rec, snap.CurrentSummary)
			if err != nil {
				return err
			}
			resp.Recommendations[i] = eval
			return nil
		})
	}
	if snap.Routing.PrimaryTeam != "" {
		g.Go(func() error {
			eval, err := h.evaluator.EvaluateRouting(ctx, snap.CurrentSummary, snap.Routing.PrimaryTeam)
			if err != nil {
				return err
			}
			resp.Routing = &eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("Evaluation failed", "error", err, "client_id", clientID)
		Error(w, http.StatusBadGateway, "evaluation failed")
		return
	}
	JSON(w, http.StatusOK, resp)
}
