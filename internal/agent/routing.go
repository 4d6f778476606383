package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

const routingPrompt = `
You are a customer support routing specialist. Your task is to determine the most
appropriate team(s) to handle a customer issue based on the conversation and actions needed.

Available teams:
%s

%s

Conversation:
%s

Based on the issue and required actions, determine:
1. The primary team that should handle this issue
2. Any additional teams that need to be involved (if applicable)

Return your answer in the following format:
Primary Team: [team name]
Additional Teams: [team name], [team name] (or "None" if no additional teams)
`

const (
	primaryTeamLabel     = "Primary Team:"
	additionalTeamsLabel = "Additional Teams:"
)

// Router assigns an issue to the support teams.
type Router struct {
	stage
}

// NewRouter creates a router.
func NewRouter(gen llm.Generator, logger *slog.Logger) *Router {
	return &Router{stage: newStage("routing", gen, logger)}
}

// Route asks the generator for a team assignment and parses it.
func (r *Router) Route(ctx context.Context, conversation string, actions []string) (domain.Routing, error) {
	if strings.TrimSpace(conversation) == "" {
		return FallbackRouting(), ErrEmptyConversation
	}
	actionsContext := ""
	if len(actions) > 0 {
		actionsContext = "Identified action items:\n" + bulletList(actions)
	}
	out, err := r.generate(ctx, fmt.Sprintf(routingPrompt, bulletList(domain.Teams()), actionsContext, conversation))
	if err != nil {
		return FallbackRouting(), err
	}
	return ParseRouting(out), nil
}

// ParseRouting reads the labelled team lines. An unknown or missing primary
// team becomes the default team; unknown additional teams are dropped.
func ParseRouting(text string) domain.Routing {
	routing := domain.Routing{PrimaryTeam: domain.DefaultTeam, AdditionalTeams: []string{}}
	for line := range strings.SplitSeq(text, "\n") {
		if v, ok := valueAfter(line, primaryTeamLabel); ok {
			if domain.IsTeam(v) {
				routing.PrimaryTeam = v
			} else {
				routing.PrimaryTeam = domain.DefaultTeam
			}
			continue
		}
		if v, ok := valueAfter(line, additionalTeamsLabel); ok {
			routing.AdditionalTeams = parseTeamList(v)
		}
	}
	return routing
}

func parseTeamList(v string) []string {
	teams := []string{}
	if strings.EqualFold(v, "none") {
		return teams
	}
	for name := range strings.SplitSeq(v, ",") {
		name = strings.TrimSpace(name)
		if domain.IsTeam(name) && !slices.Contains(teams, name) {
			teams = append(teams, name)
		}
	}
	return teams
}
