package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

const estimatePrompt = `
You are a customer support time estimation specialist. Your task is to estimate
how long it will take to resolve a customer issue based on the conversation,
required actions, team assignment, and historical data.

Conversation:
%s

%s

%s

%s

Based on this information, estimate how long it will likely take to fully resolve
this customer's issue. Consider the complexity of the issue, the number and type of
actions required, the teams involved, and historical resolution times.

Provide your estimate in the following format:
Estimated Resolution Time: [time range or specific time]
Confidence Level: [High/Medium/Low]
Factors: [brief explanation of key factors affecting the estimate]
`

// TimeEstimator predicts how long an issue will take to resolve.
type TimeEstimator struct {
	stage
	history HistoryStore
}

// NewTimeEstimator creates an estimator. history may be nil.
func NewTimeEstimator(gen llm.Generator, history HistoryStore, logger *slog.Logger) *TimeEstimator {
	return &TimeEstimator{stage: newStage("time_estimate", gen, logger), history: history}
}

// Estimate returns the generated estimate with blank lines removed.
func (e *TimeEstimator) Estimate(ctx context.Context, conversation string, actions []string, routing domain.Routing) (string, error) {
	if strings.TrimSpace(conversation) == "" {
		return "", ErrEmptyConversation
	}

	actionsContext := ""
	if len(actions) > 0 {
		actionsContext = "Required actions:\n" + bulletList(actions)
	}

	prompt := fmt.Sprintf(estimatePrompt,
		conversation, actionsContext, routingContext(routing), e.historicalContext(ctx, conversation))
	out, err := e.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.Join(nonEmptyLines(out), "\n"), nil
}

func (e *TimeEstimator) historicalContext(ctx context.Context, conversation string) string {
	if e.history == nil {
		return noResolutionSamplesContext
	}
	samples, err := e.history.ResolutionTimeSamples(ctx, conversation, resolutionSampleLimit)
	if err != nil {
		e.logger.Warn("Resolution time lookup failed", "error", err)
		return noResolutionSamplesContext
	}
	return describeSamples(samples)
}

func describeSamples(samples []float64) string {
	if len(samples) == 0 {
		return noResolutionSamplesContext
	}
	lo, hi, sum := samples[0], samples[0], 0.0
	for _, s := range samples {
		lo = min(lo, s)
		hi = max(hi, s)
		sum += s
	}
	return fmt.Sprintf("Historical resolution times for similar issues:\n"+
		"- Average: %.1f hours\n- Minimum: %.1f hours\n- Maximum: %.1f hours\n- Sample size: %d similar issues",
		sum/float64(len(samples)), lo, hi, len(samples))
}

func routingContext(r domain.Routing) string {
	if r.PrimaryTeam == "" {
		return ""
	}
	out := "Primary team: " + r.PrimaryTeam
	if len(r.AdditionalTeams) > 0 {
		out += "\nAdditional teams involved: " + strings.Join(r.AdditionalTeams, ", ")
	}
	return out
}

// EstimatedResolutionTime extracts the value of the "Estimated Resolution
// Time:" line from an estimate, if present.
func EstimatedResolutionTime(estimate string) (string, bool) {
	for line := range strings.SplitSeq(estimate, "\n") {
		_, after, found := strings.Cut(line, estimatedResolutionTimeLabel)
		if found {
			return strings.TrimSpace(after), true
		}
	}
	return "", false
}
