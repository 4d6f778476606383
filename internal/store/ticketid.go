package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// maxTicketIDAttempts bounds the suffix search in GenerateUniqueTicketID.
const maxTicketIDAttempts = 100

// ExistenceChecker reports whether a ticket ID is already taken.
type ExistenceChecker interface {
	TicketExists(ctx context.Context, ticketID string) (bool, error)
}

// ExistenceFunc adapts a function to ExistenceChecker.
type ExistenceFunc func(ctx context.Context, ticketID string) (bool, error)

// TicketExists calls f.
func (f ExistenceFunc) TicketExists(ctx context.Context, ticketID string) (bool, error) {
	return f(ctx, ticketID)
}

// BaseTicketID returns the time-derived ticket ID before de-duplication.
func BaseTicketID(now time.Time) string {
	return fmt.Sprintf("TICKET-%d", now.Unix())
}

// GenerateUniqueTicketID returns base if it is free, otherwise the first free
// base-1, base-2, ... candidate. Checker errors count as "free". After
// maxTicketIDAttempts taken candidates the next suffix is returned unchecked.
func GenerateUniqueTicketID(ctx context.Context, checker ExistenceChecker, base string) string {
	candidate := base
	for attempt := 1; attempt <= maxTicketIDAttempts; attempt++ {
		exists, err := checker.TicketExists(ctx, candidate)
		if err != nil {
			slog.Warn("Ticket ID existence check failed, assuming free",
				"ticket_id", candidate,
				"error", err)
			return candidate
		}
		if !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	slog.Warn("Ticket ID suffix search exhausted", "base", base, "ticket_id", candidate)
	return candidate
}
