package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/supportdesk/internal/llm"
)

const summaryPrompt = `
You are a customer support summary specialist. Your task is to create a concise,
factual summary of the following customer support conversation.
Focus on the main customer issue, relevant details, and current status.

Conversation:
%s

Create a brief, objective summary (3-5 sentences) that captures the essence of this conversation:
`

const summaryUpdatePrompt = `
You have an existing summary of a customer support conversation:

Existing Summary:
%s

Here are new messages from the conversation:
%s

Update the summary to incorporate the new information while keeping it concise (3-5 sentences).
Do not include any preamble such as "Here is the summary".
`

// Summarizer condenses a conversation into a short summary.
type Summarizer struct {
	stage
}

// NewSummarizer creates a summarizer.
func NewSummarizer(gen llm.Generator, logger *slog.Logger) *Summarizer {
	return &Summarizer{stage: newStage("summary", gen, logger)}
}

// Summarize summarizes the formatted conversation.
func (s *Summarizer) Summarize(ctx context.Context, conversation string) (string, error) {
	if strings.TrimSpace(conversation) == "" {
		return "", ErrEmptyConversation
	}
	return s.generate(ctx, fmt.Sprintf(summaryPrompt, conversation))
}

// UpdateSummary folds newMessages into prev. It summarizes from scratch when
// prev is empty and returns prev unchanged when the update fails.
func (s *Summarizer) UpdateSummary(ctx context.Context, prev, newMessages string) (string, error) {
	if strings.TrimSpace(prev) == "" {
		return s.Summarize(ctx, newMessages)
	}
	if strings.TrimSpace(newMessages) == "" {
		return prev, nil
	}
	out, err := s.generate(ctx, fmt.Sprintf(summaryUpdatePrompt, prev, newMessages))
	if err != nil {
		s.logger.Warn("Summary update failed, keeping previous summary", "error", err)
		return prev, nil
	}
	return out, nil
}
