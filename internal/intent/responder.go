package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/supportdesk/internal/conversation"
	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

// Fallback replies used when generation fails or returns nothing.
const (
	FallbackGreetingReply = "Hello! How can I assist you today?"
	FallbackFarewellReply = "Thank you for reaching out. Have a great day!"
	FallbackCasualReply   = "Is there something specific I can help you with today?"
	FallbackProbingReply  = "I'd like to help you with that. Could you please provide more specific details about what you're experiencing so I can better assist you?"
)

// replyContextMessages is how many trailing history messages are shown to the
// generator for short replies.
const replyContextMessages = 3

const casualPrompt = `
You are a friendly customer support chatbot. The user has sent a %[1]s message.
Generate a brief, friendly response appropriate for their message.

Recent conversation context:
%[2]s

User's message: %[3]s

Write a short, friendly response (1-2 sentences) that:
- Maintains a professional but warm tone
- Acknowledges their %[1]s appropriately
- For greetings, ask how you can help them today
- For farewells, thank them for reaching out

Your response should be brief and conversational.
Don't include text like "Here's a possible response:" or any extra text, just strictly act as a customer support agent.
`

const probingPrompt = `
You are a customer support agent. The user has mentioned a problem or request,
but hasn't provided enough specific details for you to fully understand or address it.

Recent conversation context:
%s

User's message: %s

Write a response that:
1. Acknowledges their message in a friendly, professional way
2. Gently asks for more specific details about their issue/request
3. Provides guidance about what kind of information would be helpful (error messages, specific symptoms, when the issue started, etc.)

Keep your response friendly and helpful, focusing on getting more details without sounding like a template.
Your response should be 2-3 sentences only.
`

// Responder writes the replies for greeting, farewell and probing paths.
type Responder struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewResponder creates a responder backed by gen.
func NewResponder(gen llm.Generator, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{gen: gen, logger: logger}
}

// CasualReply answers a greeting or farewell using the already-computed
// intent.
func (r *Responder) CasualReply(ctx context.Context, intent domain.Intent, message string, history []domain.Message) string {
	prompt := fmt.Sprintf(casualPrompt, intent, conversation.Context(history, replyContextMessages), message)
	reply, err := r.generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("Casual reply generation failed", "intent", intent, "error", err)
		switch intent {
		case domain.IntentGreeting:
			return FallbackGreetingReply
		case domain.IntentFarewell:
			return FallbackFarewellReply
		default:
			return FallbackCasualReply
		}
	}
	return reply
}

// ProbingReply asks the user for the specifics needed to work the issue.
func (r *Responder) ProbingReply(ctx context.Context, message string, history []domain.Message) string {
	prompt := fmt.Sprintf(probingPrompt, conversation.Context(history, replyContextMessages), message)
	reply, err := r.generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("Probing reply generation failed", "error", err)
		return FallbackProbingReply
	}
	return reply
}

func (r *Responder) generate(ctx context.Context, prompt string) (string, error) {
	if r.gen == nil {
		return "", errNoGenerator
	}
	out, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyReply
	}
	return out, nil
}
