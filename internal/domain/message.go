package domain

import "time"

// TimestampLayout is the wall-clock format used for message timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewMessage builds a message stamped with t.
func NewMessage(role Role, content string, t time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: t.Format(TimestampLayout),
	}
}
