package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

const recommendationEvaluationPrompt = `
You are a customer support quality analyst. Your task is to evaluate the likely effectiveness
of a proposed solution for a given customer issue.

Customer issue: %s

Proposed solution: %s

Evaluate how well this solution addresses the customer's issue. Consider completeness,
clarity and whether it is the right approach for this issue.

Return your evaluation as:
Score: [number between 0-1]
Explanation: [your brief explanation]
`

const routingEvaluationPrompt = `
You are a customer support quality analyst. Your task is to evaluate whether
an issue was routed to the appropriate team.

Available teams:
%s

Issue summary: %s
Assigned team: %s

Evaluate whether this issue appears to be correctly routed to the appropriate team.
If not, suggest which team would be more appropriate.

Return your evaluation as:
Correct Routing: [Yes/No]
Explanation: [brief explanation]
Suggested Team: [only if routing is incorrect]
`

// Evaluator produces second-opinion quality scores for pipeline output.
type Evaluator struct {
	stage
}

// NewEvaluator creates an evaluator.
func NewEvaluator(gen llm.Generator, logger *slog.Logger) *Evaluator {
	return &Evaluator{stage: newStage("evaluation", gen, logger)}
}

// EvaluateRecommendation scores how well rec addresses the summarized issue.
func (e *Evaluator) EvaluateRecommendation(ctx context.Context, rec, summary string) (domain.RecommendationEvaluation, error) {
	out, err := e.generate(ctx, fmt.Sprintf(recommendationEvaluationPrompt, summaryContext(summary), rec))
	if err != nil {
		return domain.RecommendationEvaluation{}, err
	}
	eval := ParseRecommendationEvaluation(out)
	eval.Recommendation = rec
	return eval, nil
}

// EvaluateRouting judges whether team fits the summarized issue.
func (e *Evaluator) EvaluateRouting(ctx context.Context, summary, team string) (domain.RoutingEvaluation, error) {
	prompt := fmt.Sprintf(routingEvaluationPrompt, strings.Join(domain.Teams(), ", "), summaryContext(summary), team)
	out, err := e.generate(ctx, prompt)
	if err != nil {
		return domain.RoutingEvaluation{}, err
	}
	eval := ParseRoutingEvaluation(out)
	eval.AssignedTeam = team
	return eval, nil
}

// ParseRecommendationEvaluation reads the "Score:" and "Explanation:" lines.
// Either being missing or malformed yields the neutral default.
func ParseRecommendationEvaluation(text string) domain.RecommendationEvaluation {
	var (
		score                 float64
		explanation           string
		haveScore, haveReason bool
	)
	for _, line := range nonEmptyLines(text) {
		if v, ok := valueAfter(line, "Score:"); ok && !haveScore {
			f, err := strconv.ParseFloat(firstField(v), 64)
			if err == nil {
				score, haveScore = f, true
			}
			continue
		}
		if v, ok := valueAfter(line, "Explanation:"); ok && !haveReason {
			explanation, haveReason = v, true
		}
	}
	if !haveScore || !haveReason {
		return domain.RecommendationEvaluation{Score: 0.5, Explanation: unparsedEvaluation}
	}
	return domain.RecommendationEvaluation{Score: min(max(score, 0), 1), Explanation: explanation}
}

// ParseRoutingEvaluation reads the "Correct Routing:", "Explanation:" and
// "Suggested Team:" lines.
func ParseRoutingEvaluation(text string) domain.RoutingEvaluation {
	var eval domain.RoutingEvaluation
	haveVerdict := false
	for _, line := range nonEmptyLines(text) {
		if v, ok := valueAfter(line, "Correct Routing:"); ok {
			eval.Correct = strings.Contains(strings.ToLower(v), "yes")
			haveVerdict = true
			continue
		}
		if v, ok := valueAfter(line, "Explanation:"); ok {
			eval.Explanation = v
			continue
		}
		if v, ok := valueAfter(line, "Suggested Team:"); ok && domain.IsTeam(v) {
			eval.SuggestedTeam = v
		}
	}
	if !haveVerdict {
		return domain.RoutingEvaluation{Explanation: unparsedEvaluation}
	}
	if eval.Correct {
		eval.SuggestedTeam = ""
	}
	return eval
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".,;")
}
