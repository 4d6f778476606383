package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/supportdesk/internal/store"
)

// statusRequest is the body of PUT /api/admin/tickets/{ticketID}/status.
type statusRequest struct {
	Status string `json:"status"`
}

// GetTicket returns a stored ticket.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusServiceUnavailable, "ticket store unavailable")
		return
	}
	ticketID := chi.URLParam(r, "ticketID")
	ticket, err := h.repo.GetTicket(r.Context(), ticketID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load ticket", "error", err, "ticket_id", ticketID)
		Error(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}
	JSON(w, http.StatusOK, ticket)
}

// UpdateTicketStatus changes a ticket's resolution status.
func (h *Handler) UpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusServiceUnavailable, "ticket store unavailable")
		return
	}
	ticketID := chi.URLParam(r, "ticketID")

	var req statusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.repo.UpdateTicketStatus(r.Context(), ticketID, req.Status)
	switch {
	case errors.Is(err, store.ErrInvalidStatus):
		Error(w, http.StatusBadRequest, "invalid status")
		return
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "ticket not found")
		return
	case err != nil:
		slog.Error("Failed to update ticket status", "error", err, "ticket_id", ticketID)
		Error(w, http.StatusInternalServerError, "failed to update ticket status")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"ticket_id": ticketID,
		"status":    req.Status,
	})
}
