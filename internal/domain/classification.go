package domain

// Intent is the coarse category of a user message.
type Intent string

const (
	IntentIssue    Intent = "issue"
	IntentGreeting Intent = "greeting"
	IntentCasual   Intent = "casual"
	IntentFarewell Intent = "farewell"
	IntentUnknown  Intent = "unknown"
)

// ParseIntent maps free text onto a known intent, returning IntentUnknown for
// anything unrecognised.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentIssue, IntentGreeting, IntentCasual, IntentFarewell:
		return Intent(s)
	default:
		return IntentUnknown
	}
}

// Classification is the result of classifying a single message.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	IsQuestion bool    `json:"is_question"`
	Reasoning  string  `json:"reasoning,omitempty"`
}
