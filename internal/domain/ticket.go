// Package domain contains core domain types for the support desk.
package domain

import (
	"time"
)

// Ticket statuses.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
)

// Ticket priorities.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Ticket is the persisted record of one support session.
type Ticket struct {
	TicketID         string     `json:"ticket_id"`
	ClientID         string     `json:"client_id,omitempty"`
	IssueCategory    string     `json:"issue_category"`
	Sentiment        string     `json:"sentiment"`
	Priority         string     `json:"priority"`
	Solution         string     `json:"solution"`
	ResolutionStatus string     `json:"resolution_status"`
	DateOfResolution *time.Time `json:"date_of_resolution,omitempty"`
	Summary          string     `json:"summary"`
	Actions          []string   `json:"actions"`
	Recommendations  []string   `json:"recommendations"`
	Routing          Routing    `json:"routing"`
	TimeEstimate     string     `json:"time_estimate"`
	Conversation     []Message  `json:"conversation"`
	Timestamp        string     `json:"timestamp"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsResolved returns true once the ticket has been marked resolved.
func (t *Ticket) IsResolved() bool {
	return t.ResolutionStatus == StatusResolved
}

// ResolutionHours returns the hours between creation and resolution.
// Returns 0 and false if the ticket is unresolved or the dates are unusable.
func (t *Ticket) ResolutionHours() (float64, bool) {
	if !t.IsResolved() || t.DateOfResolution == nil || t.CreatedAt.IsZero() {
		return 0, false
	}
	d := t.DateOfResolution.Sub(t.CreatedAt)
	if d <= 0 {
		return 0, false
	}
	return d.Hours(), true
}

// SimilarTicket is a condensed historical ticket used as generation context.
type SimilarTicket struct {
	Summary    string `json:"summary"`
	Resolution string `json:"resolution"`
}
