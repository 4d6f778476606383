package store

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/supportdesk/internal/conversation"
	"github.com/ashureev/supportdesk/internal/domain"
)

const (
	categoryMaxLen  = 100
	solutionMaxLen  = 200
	uncategorized   = "Uncategorized"
	pendingSolution = "Pending"
)

var urgentActionKeywords = []string{
	"outage", "down", "broken", "urgent", "immediately", "security", "breach",
}

// NewTicket assembles the persisted record for a session. timestamp is the
// wall-clock time of the message that produced it.
func NewTicket(s domain.Session, timestamp string) *domain.Ticket {
	sentiment, _ := conversation.Sentiment(conversation.Format(s.ConversationHistory))
	return &domain.Ticket{
		TicketID:         s.TicketID,
		ClientID:         s.ClientID,
		IssueCategory:    truncateOr(s.CurrentSummary, categoryMaxLen, uncategorized),
		Sentiment:        sentiment,
		Priority:         DerivePriority(s.Actions, s.Routing),
		Solution:         truncateOr(strings.Join(s.Recommendations, " "), solutionMaxLen, pendingSolution),
		ResolutionStatus: domain.StatusOpen,
		Summary:          s.CurrentSummary,
		Actions:          s.Actions,
		Recommendations:  s.Recommendations,
		Routing:          s.Routing,
		TimeEstimate:     s.TimeEstimate,
		Conversation:     s.ConversationHistory,
		Timestamp:        timestamp,
	}
}

// DerivePriority grades a ticket from its actions and routing.
func DerivePriority(actions []string, routing domain.Routing) string {
	if routing.PrimaryTeam == domain.TeamSecurity {
		return domain.PriorityCritical
	}
	for _, action := range actions {
		lower := strings.ToLower(action)
		for _, kw := range urgentActionKeywords {
			if strings.Contains(lower, kw) {
				return domain.PriorityHigh
			}
		}
	}
	return domain.PriorityMedium
}

// priorityHours stands in for resolution time when a ticket has no
// resolution date.
func priorityHours(priority string) float64 {
	switch priority {
	case domain.PriorityCritical:
		return 4.0
	case domain.PriorityHigh:
		return 2.5
	case domain.PriorityMedium:
		return 1.5
	default:
		return 1.0
	}
}

func validateTicket(t *domain.Ticket) error {
	if t == nil {
		return fmt.Errorf("%w: nil ticket", ErrInvalidTicket)
	}
	if strings.TrimSpace(t.TicketID) == "" {
		return fmt.Errorf("%w: ticket_id is required", ErrInvalidTicket)
	}
	return nil
}

func truncateOr(s string, n int, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
