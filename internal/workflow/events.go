package workflow

import (
	"context"

	"github.com/ashureev/supportdesk/internal/domain"
)

// Outbound event types.
const (
	EventInit                  = "init"
	EventMessageReceived       = "message_received"
	EventTypingIndicator       = "typing_indicator"
	EventUpdateSummary         = "update_summary"
	EventUpdateActions         = "update_actions"
	EventUpdateRecommendations = "update_recommendations"
	EventUpdateRouting         = "update_routing"
	EventUpdateTimeEstimate    = "update_time_estimate"
	EventMessage               = "message"
	EventStatusUpdateResult    = "status_update_result"
)

// Emitter delivers outbound events to one client, in call order.
type Emitter interface {
	Emit(ctx context.Context, event any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, event any) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, event any) error {
	return f(ctx, event)
}

// InitEvent carries the full session on connect.
type InitEvent struct {
	Type string         `json:"type"`
	Data domain.Session `json:"data"`
}

// MessageReceivedEvent acknowledges an inbound message.
type MessageReceivedEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// TypingEvent toggles the client's typing indicator.
type TypingEvent struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"isTyping"`
}

// UpdateEvent carries one pipeline stage's artifact.
type UpdateEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageEvent is the assistant's reply.
type MessageEvent struct {
	Type      string      `json:"type"`
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
}

// StatusUpdateResultEvent reports the outcome of an update_status request.
type StatusUpdateResultEvent struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Status  string `json:"status"`
}
