// Package intent classifies inbound messages and produces the replies for
// paths that bypass the full pipeline.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

// Vague issue phrases checked before any generation call.
var precheckVagueIssues = []string{
	"i have an issue", "i have a issue", "i have a problem", "i have problem", "help me",
}

// Vague issue phrases used to correct generated output and by the fallback
// heuristic.
var vagueIssues = []string{
	"i have an issue", "i have a issue", "i have a problem", "i have problem",
	"got an issue", "having an issue", "need help", "help me",
}

var greetings = []string{
	"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening",
}

var farewells = []string{
	"bye", "goodbye", "farewell", "see you", "thanks", "thank you",
}

var issueMarkers = []string{
	"error", "failed", "doesn't work", "cannot", "can't", "issue with", "problem with", "bug",
}

const (
	reasonVague    = "Vague mention of an issue without specific details"
	reasonGreeting = "Simple greeting detected"
	reasonFarewell = "Farewell detected"
)

const classificationPrompt = `
Carefully analyze this customer support message and classify it into one of these categories:

1. "issue" - Contains a SPECIFIC customer problem with clear details that requires troubleshooting or support
2. "greeting" - Simple hello, hi, or conversation starter without specific issues
3. "casual" - General conversation, small talk, or VAGUE mentions of issues without specific details
4. "farewell" - Goodbye, thanks, or conversation ender
5. "unknown" - Unclear intent

Critical classification rules:
- "issue" classification REQUIRES specific details about a problem (error messages, specific symptoms, clear questions about functionality)
- Short, vague statements like "I have an issue" or "I have a problem" without details MUST be "casual", not "issue"
- "greeting" is for simple introductory messages like "hello", "hi there", "good morning", with NO other content
- "casual" includes vague mentions of problems WITHOUT details (e.g., "I have an issue", "something's wrong", "need help")
- "farewell" indicates the user is ending the conversation
- A message must have CONCRETE DETAILS about a specific problem to be classified as an "issue"
- Length alone does not determine classification - short messages with specific details are "issues"

Examples:
- "hello" -> "greeting" (confidence: 0.95)
- "hi there" -> "greeting" (confidence: 0.95)
- "I have an issue" -> "casual" (confidence: 0.9)
- "hello, I'm having trouble logging in" -> "casual" (confidence: 0.8)
- "I'm getting error code 404 when trying to log in" -> "issue" (confidence: 0.9)
- "thank you, goodbye" -> "farewell" (confidence: 0.9)

Customer message: %q

Respond with JSON only:
{
  "intent": "[category]",
  "confidence": [0.0-1.0],
  "is_question": true/false,
  "reasoning": "[brief explanation of why you classified it this way]"
}
`

// Classifier maps a message to an intent. Deterministic checks run first;
// everything else goes through the generator with a keyword fallback.
type Classifier struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewClassifier creates a classifier backed by gen.
func NewClassifier(gen llm.Generator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, logger: logger}
}

// Classify never fails: every error path resolves to a conservative result.
func (c *Classifier) Classify(ctx context.Context, message string) (result domain.Classification) {
	// Only the empty string short-circuits; whitespace-only input is
	// classified like any other text.
	if message == "" {
		c.logger.Warn("Classifier received empty message")
		return domain.Classification{Intent: domain.IntentUnknown, Confidence: 0}
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Classifier panicked", "panic", r)
			result = domain.Classification{
				Intent:     domain.IntentCasual,
				Confidence: 0.3,
				IsQuestion: strings.Contains(message, "?"),
			}
		}
	}()

	normalized := normalize(message)

	if slices.Contains(precheckVagueIssues, normalized) {
		return domain.Classification{Intent: domain.IntentCasual, Confidence: 0.9, Reasoning: reasonVague}
	}
	if isGreeting(normalized) {
		return domain.Classification{Intent: domain.IntentGreeting, Confidence: 0.95, Reasoning: reasonGreeting}
	}
	if isFarewell(normalized) {
		return domain.Classification{Intent: domain.IntentFarewell, Confidence: 0.8, Reasoning: reasonFarewell}
	}

	if c.gen != nil {
		parsed, err := c.classifyWithGenerator(ctx, message)
		if err == nil {
			result = applyOverrides(normalized, parsed)
			c.logger.Info("Intent classified",
				"intent", result.Intent,
				"confidence", result.Confidence,
				"reasoning", result.Reasoning)
			return result
		}
		c.logger.Warn("Generated classification unusable, using heuristic", "error", err)
	}

	return heuristic(message, normalized)
}

// classifierOutput mirrors the JSON requested in the prompt. Pointer fields
// distinguish missing values from zero values.
type classifierOutput struct {
	Intent     *string  `json:"intent"`
	Confidence *float64 `json:"confidence"`
	IsQuestion *bool    `json:"is_question"`
	Reasoning  string   `json:"reasoning"`
}

func (c *Classifier) classifyWithGenerator(ctx context.Context, message string) (domain.Classification, error) {
	resp, err := c.gen.Generate(ctx, fmt.Sprintf(classificationPrompt, message))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("generate classification: %w", err)
	}
	raw, err := llm.ExtractJSON(resp)
	if err != nil {
		return domain.Classification{}, err
	}
	var out classifierOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	result := domain.Classification{
		Intent:     domain.IntentUnknown,
		Confidence: 0.5,
		Reasoning:  out.Reasoning,
	}
	if out.Intent != nil {
		result.Intent = domain.ParseIntent(strings.ToLower(strings.TrimSpace(*out.Intent)))
	}
	if out.Confidence != nil {
		result.Confidence = clamp(*out.Confidence)
	}
	if out.IsQuestion != nil {
		result.IsQuestion = *out.IsQuestion
	}
	if result.Reasoning == "" {
		result.Reasoning = "No reasoning provided"
	}
	return result, nil
}

// applyOverrides pins exact greetings and vague issue phrases regardless of
// what the generator said.
func applyOverrides(normalized string, c domain.Classification) domain.Classification {
	if isGreeting(normalized) && c.Intent != domain.IntentGreeting {
		c.Intent = domain.IntentGreeting
		c.Confidence = 0.95
		c.Reasoning = "Simple greeting detected with no other content"
	}
	if slices.Contains(vagueIssues, normalized) && c.Intent != domain.IntentCasual {
		c.Intent = domain.IntentCasual
		c.Confidence = 0.9
		c.Reasoning = reasonVague
	}
	return c
}

func heuristic(message, normalized string) domain.Classification {
	if slices.Contains(vagueIssues, normalized) ||
		(len(normalized) < 30 && (strings.Contains(normalized, "issue") || strings.Contains(normalized, "problem"))) {
		return domain.Classification{Intent: domain.IntentCasual, Confidence: 0.9, Reasoning: reasonVague}
	}
	if isGreeting(normalized) {
		return domain.Classification{Intent: domain.IntentGreeting, Confidence: 0.95, Reasoning: reasonGreeting}
	}
	if isFarewell(normalized) {
		return domain.Classification{Intent: domain.IntentFarewell, Confidence: 0.8, Reasoning: reasonFarewell}
	}

	hasQuestion := strings.Contains(message, "?")
	hasDetails := false
	for _, marker := range issueMarkers {
		if strings.Contains(normalized, marker) {
			hasDetails = true
			break
		}
	}
	if hasDetails && len(normalized) > 30 {
		return domain.Classification{
			Intent:     domain.IntentIssue,
			Confidence: 0.7,
			IsQuestion: hasQuestion,
			Reasoning:  "Contains specific issue details",
		}
	}
	return domain.Classification{
		Intent:     domain.IntentCasual,
		Confidence: 0.6,
		IsQuestion: hasQuestion,
		Reasoning:  "General conversation or vague issue mention",
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isGreeting(normalized string) bool {
	for _, g := range greetings {
		if normalized == g || normalized == g+"!" {
			return true
		}
	}
	return false
}

func isFarewell(normalized string) bool {
	if len(strings.Fields(normalized)) > 5 {
		return false
	}
	for _, f := range farewells {
		if strings.Contains(normalized, f) {
			return true
		}
	}
	return false
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
