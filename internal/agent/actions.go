package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/supportdesk/internal/llm"
)

const actionsPrompt = `
You are a customer support action item specialist. Your task is to analyze a customer
conversation and identify specific actions that need to be taken to resolve the issue.

Conversation summary: %s

Full conversation:
%s

List the specific action items that need to be completed to resolve this customer's issue.
Each action should be clear, specific, and actionable. Include only actions that a support
agent or another team needs to take, not actions the customer needs to take.

Return ONLY a list of action items, one per line, with no numbering or prefixes.
`

// ActionExtractor lists the work items needed to resolve an issue.
type ActionExtractor struct {
	stage
}

// NewActionExtractor creates an action extractor.
func NewActionExtractor(gen llm.Generator, logger *slog.Logger) *ActionExtractor {
	return &ActionExtractor{stage: newStage("actions", gen, logger)}
}

// Extract returns one action per non-blank line of generated output.
func (a *ActionExtractor) Extract(ctx context.Context, conversation, summary string) ([]string, error) {
	if strings.TrimSpace(conversation) == "" {
		return []string{}, ErrEmptyConversation
	}
	out, err := a.generate(ctx, fmt.Sprintf(actionsPrompt, summaryContext(summary), conversation))
	if err != nil {
		return []string{}, err
	}
	actions := nonEmptyLines(out)
	if actions == nil {
		actions = []string{}
	}
	return actions, nil
}

func summaryContext(summary string) string {
	if strings.TrimSpace(summary) == "" {
		return PlaceholderSummary
	}
	return summary
}
