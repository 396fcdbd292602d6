package classifier

import (
	"math"

	"github.com/mounikasaka1/hackai/internal/domain"
)

// Confidence scores.
const (
	friendlyConfidence = 90.0
	normalConfidence   = 85.0
	concernBase        = 75.0
	concernPerSeverity = 5.0
	maxConfidence      = 100.0
)

// Confidence returns the engine's self-reported certainty for a label, in
// [0, 100] and rounded to two decimals.
func Confidence(category domain.Category, severity int) float64 {
	var score float64
	switch {
	case category == domain.CategoryFriendly:
		score = friendlyConfidence
	case category.IsConcerning():
		score = concernBase + concernPerSeverity*float64(severity)
	default:
		score = normalConfidence
	}
	score = math.Max(0, math.Min(maxConfidence, score))
	return math.Round(score*100) / 100
}
