package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/supportdesk/internal/llm"
)

const recommendationsPrompt = `
You are a customer support solution specialist. Your task is to recommend the most appropriate
solutions for the current customer issue based on the conversation and similar past issues.

Current issue summary: %s

%s

%s

Current conversation:
%s

Based on this information, provide a list of 2-3 specific recommendations to resolve the customer's issue.
Each recommendation should be:
1. Clear and detailed (not just a few words)
2. Actionable with specific steps
3. Directly addressing the customer's problem
4. Formatted as complete sentences with proper punctuation

Return ONLY a list of recommendations, one per line, with no numbering or prefixes.
Make each recommendation at least 10-15 words and be specific about what actions to take.
`

// Recommender proposes resolutions, using similar historical tickets as
// context when the store can provide them.
type Recommender struct {
	stage
	history HistoryStore
}

// NewRecommender creates a recommender. history may be nil.
func NewRecommender(gen llm.Generator, history HistoryStore, logger *slog.Logger) *Recommender {
	return &Recommender{stage: newStage("recommendations", gen, logger), history: history}
}

// Recommend returns validated recommendations. The result is never empty
// when err is nil.
func (r *Recommender) Recommend(ctx context.Context, conversation, summary string, actions []string) ([]string, error) {
	if strings.TrimSpace(conversation) == "" {
		return nil, ErrEmptyConversation
	}

	actionsContext := noActionsContext
	if len(actions) > 0 {
		actionsContext = "Identified action items:\n" + bulletList(actions)
	}

	prompt := fmt.Sprintf(recommendationsPrompt,
		summaryContext(summary), actionsContext, r.historicalContext(ctx, conversation), conversation)
	out, err := r.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	recs := ValidateRecommendations(nonEmptyLines(out))
	if len(recs) == 0 {
		return []string{NoSpecificRecommendation}, nil
	}
	return recs, nil
}

func (r *Recommender) historicalContext(ctx context.Context, conversation string) string {
	if r.history == nil {
		return noSimilarTicketsContext
	}
	tickets, err := r.history.SimilarTickets(ctx, conversation, similarTicketLimit)
	if err != nil {
		r.logger.Warn("Similar ticket lookup failed", "error", err)
		return historyUnavailableContext
	}
	if len(tickets) == 0 {
		return noSimilarTicketsContext
	}
	if len(tickets) > similarTicketLimit {
		tickets = tickets[:similarTicketLimit]
	}

	var b strings.Builder
	b.WriteString("Similar past issues and their solutions:\n")
	for i, t := range tickets {
		summary := t.Summary
		if summary == "" {
			summary = "No summary available"
		}
		resolution := t.Resolution
		if resolution == "" {
			resolution = "No resolution recorded"
		}
		fmt.Fprintf(&b, "Issue %d: %s\nSolution: %s\n\n", i+1, summary, resolution)
	}
	return b.String()
}

// ValidateRecommendations terminates each candidate with punctuation and
// keeps at most three with enough words to be actionable.
func ValidateRecommendations(candidates []string) []string {
	var out []string
	for _, rec := range candidates {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		if !strings.HasSuffix(rec, ".") && !strings.HasSuffix(rec, "!") && !strings.HasSuffix(rec, "?") {
			rec += "."
		}
		if len(strings.Fields(rec)) >= minRecommendationWords {
			out = append(out, rec)
		}
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}
