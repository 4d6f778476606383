// Package llm implements the text-generation port used by the classifier and
// the pipeline stages.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	errEmptyResponse = errors.New("empty generation response")
	errNoJSONObject  = errors.New("no JSON object in response")
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ExtractJSON returns the span from the first '{' to the last '}' in s.
// Generated text often wraps JSON in prose or code fences.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}
