package conversation

import (
	"strings"
	"time"

	"github.com/ashureev/supportdesk/internal/domain"
)

// Sentiment labels.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

var importanceKeywords = []string{
	"need", "issue", "problem", "error", "can't", "cannot", "doesn't",
	"failed", "help", "support", "urgent", "critical", "important",
	"broken", "bug", "feature", "request", "want", "would like",
	"login", "account", "password", "reset", "access", "payment",
	"billing", "subscription", "cancel", "refund", "money", "charge",
	"upgrade", "downgrade", "plan", "service", "question",
}

var positiveWords = []string{
	"thanks", "thank you", "appreciate", "good", "great", "excellent",
	"awesome", "wonderful", "happy", "pleased", "satisfied", "love",
	"like", "helpful", "resolved", "solution", "fixed",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "disappointed", "frustrating", "annoying",
	"angry", "upset", "issue", "problem", "error", "bug", "broken", "can't",
	"cannot", "doesn't", "failed", "wrong", "unhappy", "useless",
}

// Metadata summarises a conversation for ticket records.
type Metadata struct {
	MessageCount         int      `json:"message_count"`
	CustomerMessageCount int      `json:"customer_message_count"`
	AgentMessageCount    int      `json:"agent_message_count"`
	KeyPoints            []string `json:"key_points"`
	Sentiment            string   `json:"sentiment"`
	SentimentScore       float64  `json:"sentiment_score"`
	DurationMinutes      *float64 `json:"duration_minutes,omitempty"`
}

// KeyPoints returns sentences that mention an importance keyword or end in a
// question mark, each terminated with a period.
func KeyPoints(text string) []string {
	var points []string
	for _, sentence := range strings.Split(text, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		if strings.HasSuffix(sentence, "?") || containsAny(lower, importanceKeywords) {
			points = append(points, sentence+".")
		}
	}
	return points
}

// Sentiment scores text by keyword counting. The score is in [-1, 1].
func Sentiment(text string) (string, float64) {
	lower := strings.ToLower(text)
	positive := countAll(lower, positiveWords)
	negative := countAll(lower, negativeWords)

	total := positive + negative
	if total == 0 {
		return SentimentNeutral, 0
	}
	score := float64(positive-negative) / float64(total)
	switch {
	case score > 0.2:
		return SentimentPositive, score
	case score < -0.2:
		return SentimentNegative, score
	default:
		return SentimentNeutral, score
	}
}

// Analyze derives metadata from a history. An empty history yields a zero
// value.
func Analyze(history []domain.Message) Metadata {
	if len(history) == 0 {
		return Metadata{}
	}
	text := Format(history)
	sentiment, score := Sentiment(text)
	md := Metadata{
		MessageCount:   len(history),
		KeyPoints:      KeyPoints(text),
		Sentiment:      sentiment,
		SentimentScore: score,
	}
	for _, msg := range history {
		switch msg.Role {
		case domain.RoleUser:
			md.CustomerMessageCount++
		case domain.RoleAssistant:
			md.AgentMessageCount++
		}
	}
	if len(history) >= 2 {
		start, err1 := time.Parse(domain.TimestampLayout, history[0].Timestamp)
		end, err2 := time.Parse(domain.TimestampLayout, history[len(history)-1].Timestamp)
		if err1 == nil && err2 == nil {
			minutes := end.Sub(start).Minutes()
			md.DurationMinutes = &minutes
		}
	}
	return md
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func countAll(s string, words []string) int {
	n := 0
	for _, w := range words {
		n += strings.Count(s, w)
	}
	return n
}
