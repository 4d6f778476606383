package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

func TestCasualReplyFallbacks(t *testing.T) {
	gen, _ := fixedGenerator("", errors.New("down"))
	r := NewResponder(gen, discardLogger())

	assert.Equal(t, FallbackGreetingReply, r.CasualReply(context.Background(), domain.IntentGreeting, "hi", nil))
	assert.Equal(t, FallbackFarewellReply, r.CasualReply(context.Background(), domain.IntentFarewell, "bye", nil))
	assert.Equal(t, FallbackCasualReply, r.CasualReply(context.Background(), domain.IntentUnknown, "hmm", nil))
}

func TestProbingReplyFallbackOnEmptyOutput(t *testing.T) {
	gen, _ := fixedGenerator("   \n", nil)
	r := NewResponder(gen, discardLogger())

	assert.Equal(t, FallbackProbingReply, r.ProbingReply(context.Background(), "I have an issue", nil))
}

func TestRepliesIncludeRecentContext(t *testing.T) {
	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "  Could you share the error message?  ", nil
	})
	r := NewResponder(gen, discardLogger())

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "second"},
		{Role: domain.RoleUser, Content: "third"},
		{Role: domain.RoleUser, Content: "fourth"},
	}
	got := r.ProbingReply(context.Background(), "fourth", history)
	require.Equal(t, "Could you share the error message?", got)
	assert.NotContains(t, prompt, "user: first")
	assert.Contains(t, prompt, "assistant: second\nuser: third\nuser: fourth")
}
