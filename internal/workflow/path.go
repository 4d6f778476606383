package workflow

import "github.com/ashureev/supportdesk/internal/domain"

// Path is the route a message takes through the workflow.
type Path string

const (
	PathGreeting Path = "greeting"
	PathFarewell Path = "farewell"
	PathProbing  Path = "probing"
	PathPipeline Path = "pipeline"
)

// SelectPath picks the workflow path. The checks run in a fixed order: an
// issue with confidence below 0.8 is caught by the probing rule before the
// pipeline rule is reached.
func SelectPath(c domain.Classification) Path {
	switch {
	case c.Intent == domain.IntentGreeting && c.Confidence > 0.6:
		return PathGreeting
	case c.Intent == domain.IntentFarewell && c.Confidence > 0.6:
		return PathFarewell
	case c.Intent == domain.IntentCasual || (c.Intent == domain.IntentIssue && c.Confidence < 0.8):
		return PathProbing
	case c.Intent == domain.IntentIssue && c.Confidence >= 0.7:
		return PathPipeline
	default:
		return PathProbing
	}
}
