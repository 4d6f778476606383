// Package conversation turns message histories into prompt-ready text and
// derives lightweight metadata from them.
package conversation

import (
	"strings"

	"github.com/ashureev/supportdesk/internal/domain"
)

var roleLabels = map[domain.Role]string{
	domain.RoleUser:      "Customer",
	domain.RoleAssistant: "Support Agent",
}

// Format renders history as "<Label> [<timestamp>]: <content>" blocks, each
// followed by a blank line. Messages with unknown roles are skipped.
func Format(history []domain.Message) string {
	var b strings.Builder
	for _, msg := range history {
		label, ok := roleLabels[msg.Role]
		if !ok {
			continue
		}
		b.WriteString(label)
		b.WriteString(" [")
		b.WriteString(msg.Timestamp)
		b.WriteString("]: ")
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Context renders the last n messages as "role: content" lines for short
// prompts.
func Context(history []domain.Message, n int) string {
	if n < len(history) {
		history = history[len(history)-n:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
