package intent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedGenerator(out string, err error) (llm.Generator, *atomic.Int32) {
	var calls atomic.Int32
	return llm.GeneratorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return out, err
	}), &calls
}

func TestClassifyGreetingIsDeterministic(t *testing.T) {
	gens := map[string]llm.Generator{
		"nil generator": nil,
	}
	gens["failing generator"], _ = fixedGenerator("", errors.New("down"))
	gens["disagreeing generator"], _ = fixedGenerator(`{"intent":"issue","confidence":0.99}`, nil)

	for name, gen := range gens {
		c := NewClassifier(gen, discardLogger())
		for _, msg := range []string{"hello", "Hello!", "  HI  ", "good morning", "Hey!"} {
			t.Run(name+"/"+msg, func(t *testing.T) {
				got := c.Classify(context.Background(), msg)
				assert.Equal(t, domain.IntentGreeting, got.Intent)
				assert.Equal(t, 0.95, got.Confidence)
			})
		}
	}
}

func TestClassifyVagueIssueSkipsGeneration(t *testing.T) {
	gen, calls := fixedGenerator(`{"intent":"issue","confidence":0.99}`, nil)
	c := NewClassifier(gen, discardLogger())

	for _, msg := range []string{"I have an issue", "help me", "I have a problem"} {
		got := c.Classify(context.Background(), msg)
		assert.Equal(t, domain.IntentCasual, got.Intent, msg)
		assert.Equal(t, 0.9, got.Confidence, msg)
	}
	assert.Zero(t, calls.Load())
}

func TestClassifyVagueIssueOverridesGeneration(t *testing.T) {
	// "need help" is not in the precheck list, so the generator is asked.
	gen, calls := fixedGenerator(`{"intent":"issue","confidence":0.99}`, nil)
	c := NewClassifier(gen, discardLogger())

	got := c.Classify(context.Background(), "Need help")
	assert.Equal(t, domain.IntentCasual, got.Intent)
	assert.Equal(t, 0.9, got.Confidence)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClassifyFarewell(t *testing.T) {
	c := NewClassifier(nil, discardLogger())

	got := c.Classify(context.Background(), "ok thanks, bye")
	assert.Equal(t, domain.IntentFarewell, got.Intent)
	assert.Equal(t, 0.8, got.Confidence)

	got = c.Classify(context.Background(), "thanks but the export still fails with a timeout")
	assert.NotEqual(t, domain.IntentFarewell, got.Intent)
}

func TestClassifyEmptyMessage(t *testing.T) {
	gen, calls := fixedGenerator(`{"intent":"issue"}`, nil)
	c := NewClassifier(gen, discardLogger())

	got := c.Classify(context.Background(), "")
	assert.Equal(t, domain.IntentUnknown, got.Intent)
	assert.Zero(t, got.Confidence)
	assert.Zero(t, calls.Load())
}

func TestClassifyWhitespaceMessageIsGenerated(t *testing.T) {
	gen, calls := fixedGenerator(`{"intent":"issue"}`, nil)
	c := NewClassifier(gen, discardLogger())

	got := c.Classify(context.Background(), "   ")
	assert.Equal(t, domain.IntentIssue, got.Intent)
	assert.Equal(t, 0.5, got.Confidence)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifyParsesGeneratedJSON(t *testing.T) {
	tests := []struct {
		name       string
		out        string
		intent     domain.Intent
		confidence float64
		question   bool
	}{
		{
			name:       "wrapped in prose",
			out:        "Here you go:\n```json\n{\"intent\":\"issue\",\"confidence\":0.9,\"is_question\":true,\"reasoning\":\"error code\"}\n```",
			intent:     domain.IntentIssue,
			confidence: 0.9,
			question:   true,
		},
		{
			name:       "missing fields",
			out:        `{"reasoning":"unsure"}`,
			intent:     domain.IntentUnknown,
			confidence: 0.5,
		},
		{
			name:       "unrecognised intent",
			out:        `{"intent":"complaint","confidence":0.4}`,
			intent:     domain.IntentUnknown,
			confidence: 0.4,
		},
		{
			name:       "confidence clamped",
			out:        `{"intent":"ISSUE","confidence":3}`,
			intent:     domain.IntentIssue,
			confidence: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, _ := fixedGenerator(tt.out, nil)
			got := NewClassifier(gen, discardLogger()).Classify(context.Background(), "I get error 500 when uploading a file")
			assert.Equal(t, tt.intent, got.Intent)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.question, got.IsQuestion)
		})
	}
}

func TestClassifyHeuristicFallback(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		out        string
		err        error
		intent     domain.Intent
		confidence float64
		question   bool
	}{
		{
			name:       "port failure with specific details",
			msg:        "The payment page failed to load and shows error 502?",
			err:        errors.New("connection refused"),
			intent:     domain.IntentIssue,
			confidence: 0.7,
			question:   true,
		},
		{
			name:       "unparseable output short problem",
			msg:        "small problem here",
			out:        "I think this is an issue",
			intent:     domain.IntentCasual,
			confidence: 0.9,
		},
		{
			name:       "unparseable output general chat",
			msg:        "what is the weather like in your office today",
			out:        "no json",
			intent:     domain.IntentCasual,
			confidence: 0.6,
		},
		{
			name:       "details but too short",
			msg:        "bug in app",
			out:        "nope",
			intent:     domain.IntentCasual,
			confidence: 0.6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, _ := fixedGenerator(tt.out, tt.err)
			got := NewClassifier(gen, discardLogger()).Classify(context.Background(), tt.msg)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.Equal(t, tt.question, got.IsQuestion)
		})
	}
}

func TestClassifyRecoversFromPanic(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		panic("boom")
	})
	got := NewClassifier(gen, discardLogger()).Classify(context.Background(), "why does the sync keep stopping?")
	assert.Equal(t, domain.IntentCasual, got.Intent)
	assert.Equal(t, 0.3, got.Confidence)
	assert.True(t, got.IsQuestion)
}
