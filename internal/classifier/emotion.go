package classifier

import (
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/patterns"
)

// EmotionInferencer scores emotional states by distinct phrase matches.
type EmotionInferencer struct {
	order    []domain.Emotion
	matchers []*PhraseMatcher
}

// NewEmotionInferencer compiles one matcher per emotion in tie-break order.
func NewEmotionInferencer(reg *patterns.Registry) *EmotionInferencer {
	order := reg.EmotionOrder()
	matchers := make([]*PhraseMatcher, len(order))
	for i, e := range order {
		matchers[i] = NewPhraseMatcher(reg.EmotionPhrases(e))
	}
	return &EmotionInferencer{order: order, matchers: matchers}
}

// Infer picks the emotion with the most matches. Friendly messages are always
// Neutral; ties go to the earliest emotion and no matches at all give Neutral.
func (e *EmotionInferencer) Infer(text string, category domain.Category) domain.Emotion {
	if category == domain.CategoryFriendly {
		return domain.EmotionNeutral
	}

	scores := e.Scores(text)
	best, bestScore := domain.EmotionNeutral, 0
	for i, score := range scores {
		// strict > keeps the lowest index on ties
		if score > bestScore {
			best, bestScore = e.order[i], score
		}
	}
	return best
}

// Scores returns the match count per emotion in tie-break order.
func (e *EmotionInferencer) Scores(text string) []int {
	normalized := Normalize(text)
	scores := make([]int, len(e.matchers))
	for i, m := range e.matchers {
		scores[i] = m.Count(normalized)
	}
	return scores
}
