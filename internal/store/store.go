// Package store provides ticket persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/supportdesk/internal/domain"
)

var (
	// ErrNotFound is returned when a ticket does not exist.
	ErrNotFound = errors.New("ticket not found")
	// ErrInvalidTicket is returned when a ticket fails validation before save.
	ErrInvalidTicket = errors.New("invalid ticket")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid ticket status")
)

// Repository defines the interface for persisting support tickets.
type Repository interface {
	// TicketExists reports whether a ticket with the given ID has been saved.
	TicketExists(ctx context.Context, ticketID string) (bool, error)

	// SaveTicket creates or updates a ticket keyed by its ticket ID.
	// The stored resolution status is preserved on update.
	SaveTicket(ctx context.Context, ticket *domain.Ticket) error

	// GetTicket retrieves a ticket by ID, returning ErrNotFound if absent.
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)

	// UpdateTicketStatus sets the resolution status of a ticket.
	// Moving to Resolved stamps the resolution date.
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error

	// SimilarTickets returns up to limit stored tickets ranked by word
	// overlap with the conversation.
	SimilarTickets(ctx context.Context, conversation string, limit int) ([]domain.SimilarTicket, error)

	// ResolutionTimeSamples returns resolution hours for up to limit tickets
	// similar to the conversation.
	ResolutionTimeSamples(ctx context.Context, conversation string, limit int) ([]float64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// ValidStatus reports whether status is a known ticket status.
func ValidStatus(status string) bool {
	switch status {
	case domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved:
		return true
	default:
		return false
	}
}
