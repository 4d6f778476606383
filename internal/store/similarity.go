package store

import (
	"slices"
	"strings"
	"unicode"

	"github.com/ashureev/supportdesk/internal/domain"
)

// minTermLen drops short function words from overlap scoring.
const minTermLen = 4

type candidate struct {
	summary  string
	solution string
	ticket   domain.Ticket
	score    int
}

// terms returns the set of lowercase words of at least minTermLen letters.
func terms(text string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for _, w := range words {
		if len([]rune(w)) >= minTermLen {
			set[w] = struct{}{}
		}
	}
	return set
}

// rankByOverlap keeps candidates sharing at least one term with text,
// ordered by shared-term count. Ties keep their input (recency) order.
func rankByOverlap(text string, candidates []candidate, limit int) []candidate {
	query := terms(text)
	if len(query) == 0 {
		return nil
	}

	var matched []candidate
	for _, c := range candidates {
		score := 0
		for term := range terms(c.summary) {
			if _, ok := query[term]; ok {
				score++
			}
		}
		if score > 0 {
			c.score = score
			matched = append(matched, c)
		}
	}

	slices.SortStableFunc(matched, func(a, b candidate) int {
		return b.score - a.score
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
