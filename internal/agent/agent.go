// Package agent implements the pipeline stages that turn a support
// conversation into a summary, action items, recommendations, a routing
// decision and a resolution-time estimate.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

// Fallback artifacts substituted when a stage cannot produce a result.
const (
	PlaceholderSummary       = "No summary available."
	FallbackRecommendation   = "Unable to generate recommendations at this time."
	NoSpecificRecommendation = "Unable to generate specific recommendations based on the current information."
	FallbackTimeEstimate     = "Unable to estimate resolution time at this moment."
)

const (
	historyUnavailableContext    = "Unable to retrieve historical data."
	noSimilarTicketsContext      = "No similar historical tickets found."
	noActionsContext             = "No action items identified."
	noResolutionSamplesContext   = "No historical resolution time data available."
	unparsedEvaluation           = "Could not parse evaluation properly"
	estimatedResolutionTimeLabel = "Estimated Resolution Time:"

	similarTicketLimit     = 3
	resolutionSampleLimit  = 10
	minRecommendationWords = 5
	maxRecommendations     = 3
)

var (
	// ErrEmptyConversation is returned when a stage is handed no conversation text.
	ErrEmptyConversation = errors.New("empty conversation")
	errEmptyOutput       = errors.New("empty generation output")
)

// HistoryStore is the read side of the record store used for context.
type HistoryStore interface {
	SimilarTickets(ctx context.Context, conversation string, limit int) ([]domain.SimilarTicket, error)
	ResolutionTimeSamples(ctx context.Context, conversation string, limit int) ([]float64, error)
}

// FallbackRecommendations returns the single-element list used when the
// recommendation stage fails.
func FallbackRecommendations() []string {
	return []string{FallbackRecommendation}
}

// FallbackRouting returns the routing used when the routing stage fails.
func FallbackRouting() domain.Routing {
	return domain.Routing{PrimaryTeam: domain.DefaultTeam, AdditionalTeams: []string{}}
}

// stage carries what every pipeline agent needs to call the generator.
type stage struct {
	name   string
	gen    llm.Generator
	logger *slog.Logger
}

func newStage(name string, gen llm.Generator, logger *slog.Logger) stage {
	if logger == nil {
		logger = slog.Default()
	}
	return stage{name: name, gen: gen, logger: logger.With("agent", name)}
}

func (s stage) generate(ctx context.Context, prompt string) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("%s: no generator configured", s.name)
	}
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.name, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: %w", s.name, errEmptyOutput)
	}
	return out, nil
}

// nonEmptyLines splits text into trimmed lines, dropping blank ones.
func nonEmptyLines(text string) []string {
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func bulletList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

// valueAfter returns the trimmed text after label when line starts with it.
func valueAfter(line, label string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), label)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
