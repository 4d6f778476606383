package domain

import "slices"

// Session holds the per-client conversation and the latest artifact produced
// by each pipeline stage.
type Session struct {
	ClientID            string    `json:"-"`
	TicketID            string    `json:"ticket_id"`
	ConversationHistory []Message `json:"conversation_history"`
	CurrentSummary      string    `json:"current_summary"`
	Actions             []string  `json:"actions"`
	Recommendations     []string  `json:"recommendations"`
	Routing             Routing   `json:"routing"`
	TimeEstimate        string    `json:"time_estimate"`

	// SummarizedMessages is how many history messages CurrentSummary covers.
	SummarizedMessages int `json:"-"`
}

// NewSession creates an empty session bound to a ticket ID.
func NewSession(clientID, ticketID string) *Session {
	return &Session{
		ClientID:            clientID,
		TicketID:            ticketID,
		ConversationHistory: []Message{},
		Actions:             []string{},
		Recommendations:     []string{},
		Routing:             Routing{AdditionalTeams: []string{}},
	}
}

// Append adds a message to the end of the history.
func (s *Session) Append(msg Message) {
	s.ConversationHistory = append(s.ConversationHistory, msg)
}

// RecentMessages returns the last n messages of the history.
func (s *Session) RecentMessages(n int) []Message {
	if n >= len(s.ConversationHistory) {
		return s.ConversationHistory
	}
	return s.ConversationHistory[len(s.ConversationHistory)-n:]
}

// Snapshot returns a deep copy safe to hand to another goroutine.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.ConversationHistory = slices.Clone(s.ConversationHistory)
	cp.Actions = slices.Clone(s.Actions)
	cp.Recommendations = slices.Clone(s.Recommendations)
	cp.Routing.AdditionalTeams = slices.Clone(s.Routing.AdditionalTeams)
	if cp.ConversationHistory == nil {
		cp.ConversationHistory = []Message{}
	}
	if cp.Actions == nil {
		cp.Actions = []string{}
	}
	if cp.Recommendations == nil {
		cp.Recommendations = []string{}
	}
	if cp.Routing.AdditionalTeams == nil {
		cp.Routing.AdditionalTeams = []string{}
	}
	return cp
}
