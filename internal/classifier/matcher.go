// Package classifier implements the rule cascade, the heuristic severity and
// emotion scorers, and the orchestrator that picks the rule or model path.
package classifier

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// PhraseMatcher finds phrase literals in text with an Aho-Corasick automaton.
// Matching is plain substring containment on lower-cased text, so "hurting"
// matches "hurt". Safe for concurrent use.
type PhraseMatcher struct {
	phrases []string
	ac      *ahocorasick.Matcher
}

// NewPhraseMatcher builds a matcher over phrases. Duplicates are dropped and
// the first occurrence keeps its position.
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	seen := make(map[string]bool, len(phrases))
	uniq := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		uniq = append(uniq, p)
	}

	m := &PhraseMatcher{phrases: uniq}
	if len(uniq) > 0 {
		m.ac = ahocorasick.NewStringMatcher(uniq)
	}
	return m
}

// hits returns the indices of distinct phrases present in normalized text.
func (m *PhraseMatcher) hits(normalized string) []int {
	if m.ac == nil || normalized == "" {
		return nil
	}
	return m.ac.MatchThreadSafe([]byte(normalized))
}

// Any reports whether at least one phrase occurs in normalized text.
func (m *PhraseMatcher) Any(normalized string) bool {
	return len(m.hits(normalized)) > 0
}

// Count returns how many distinct phrases occur in normalized text.
func (m *PhraseMatcher) Count(normalized string) int {
	seen := make(map[int]struct{})
	for _, idx := range m.hits(normalized) {
		seen[idx] = struct{}{}
	}
	return len(seen)
}

// Matches returns the distinct phrases found, in phrase-list order.
func (m *PhraseMatcher) Matches(normalized string) []string {
	found := make(map[int]bool)
	for _, idx := range m.hits(normalized) {
		found[idx] = true
	}
	out := make([]string, 0, len(found))
	for i, p := range m.phrases {
		if found[i] {
			out = append(out, p)
		}
	}
	return out
}

// Len is the number of distinct phrases.
func (m *PhraseMatcher) Len() int { return len(m.phrases) }

// typographic apostrophes folded to ASCII so "you’ll" matches "you'll".
var apostropheFolder = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// Normalize lower-cases text and folds typographic apostrophes. No
// tokenisation or stemming is applied.
func Normalize(text string) string {
	return apostropheFolder.Replace(strings.ToLower(text))
}
