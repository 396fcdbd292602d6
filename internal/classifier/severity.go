package classifier

import (
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/patterns"
)

type severityTier struct {
	severity int
	matcher  *PhraseMatcher
}

// SeverityCalculator maps textual cues to a severity tier. Tiers are checked
// high to low and the first hit wins. The tiers are independent of incident
// categories.
type SeverityCalculator struct {
	tiers []severityTier
}

// NewSeverityCalculator compiles the registry's severity tiers.
func NewSeverityCalculator(reg *patterns.Registry) *SeverityCalculator {
	src := reg.SeverityTiers()
	tiers := make([]severityTier, 0, len(src))
	for _, t := range src {
		tiers = append(tiers, severityTier{severity: t.Severity, matcher: NewPhraseMatcher(t.Phrases)})
	}
	return &SeverityCalculator{tiers: tiers}
}

// Severity returns the first matching tier's severity, or the minimum.
func (s *SeverityCalculator) Severity(text string) int {
	normalized := Normalize(text)
	for _, t := range s.tiers {
		if t.matcher.Any(normalized) {
			return t.severity
		}
	}
	return domain.MinSeverity
}
