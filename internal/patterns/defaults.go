package patterns

import "github.com/mounikasaka1/hackai/internal/domain"

// DefaultVersion tags the built-in tables.
const DefaultVersion = "builtin-1"

// Category phrase tables, in match order within each category.
var (
	stalkingPhrases = []string{
		"outside your place",
		"been watching",
		"following you",
		"saw you at",
		"make sure you're okay",
	}

	coerciveControlPhrases = []string{
		"shouldn't",
		"can't handle",
		"know what's best",
		"must",
		"have to",
		"walk home alone",
		"shouldn't walk",
	}

	deathThreatPhrases = []string{
		"kill",
		"death",
		"die",
		"hurt",
		"regret it",
		"you'll regret",
	}

	emotionalManipulationPhrases = []string{
		"your fault",
		"making me",
		"because of you",
		"no one else will",
		"no one will",
		"if you just",
		"wouldn't be having",
		"imagining things",
		"make me the bad",
		"always make me",
		"you always",
		"you're just",
		"you never",
	}

	locationMonitoringPhrases = []string{
		"where are you",
		"why aren't you",
		"when will you",
		"why did you",
	}

	// trustedSenderThreats is the only set checked for a trusted sender.
	trustedSenderThreats = []string{"kill", "death", "die", "hurt"}
)

// Emotional-state phrase tables.
var defaultEmotionPhrases = map[domain.Emotion][]string{
	domain.EmotionNeutral:     {"checking in", "movie night", "lunch", "chat", "talk"},
	domain.EmotionConcerned:   {"hope you're okay", "worried", "care about"},
	domain.EmotionAnxious:     {"should", "have to", "need to", "careful"},
	domain.EmotionFearful:     {"threat", "warning", "regret", "scared"},
	domain.EmotionManipulated: {"your fault", "making me", "because of you"},
	domain.EmotionDistressed:  {"always", "never", "every time", "everyone"},
}

// Severity tiers, highest first.
var defaultSeverityTiers = []SeverityTier{
	{Severity: 5, Phrases: []string{"threat", "regret", "warning", "never", "always", "must", "have to"}},
	{Severity: 3, Phrases: []string{"should", "need to", "careful", "watching", "following"}},
	{Severity: 1, Phrases: []string{"hope", "chat", "talk", "checking in", "movie", "lunch"}},
}

// DefaultDefinition returns the built-in tables as a Definition.
func DefaultDefinition() Definition {
	cat := func(c domain.Category, sev int, emo domain.Emotion, phrases []string) CategoryDefinition {
		return CategoryDefinition{
			Name:     c.String(),
			Severity: sev,
			Emotion:  emo.String(),
			Phrases:  append([]string(nil), phrases...),
		}
	}

	emotions := make(map[string][]string, len(defaultEmotionPhrases))
	for e, phrases := range defaultEmotionPhrases {
		emotions[e.String()] = append([]string(nil), phrases...)
	}

	tiers := make([]SeverityTier, len(defaultSeverityTiers))
	for i, t := range defaultSeverityTiers {
		tiers[i] = SeverityTier{Severity: t.Severity, Phrases: append([]string(nil), t.Phrases...)}
	}

	return Definition{
		Version: DefaultVersion,
		Priority: []string{
			domain.CategoryStalking.String(),
			domain.CategoryCoerciveControl.String(),
			domain.CategoryDeathThreat.String(),
			domain.CategoryEmotionalManipulation.String(),
			domain.CategoryLocationMonitoring.String(),
		},
		Categories: []CategoryDefinition{
			cat(domain.CategoryStalking, 4, domain.EmotionFearful, stalkingPhrases),
			cat(domain.CategoryCoerciveControl, 3, domain.EmotionManipulated, coerciveControlPhrases),
			cat(domain.CategoryDeathThreat, 5, domain.EmotionFearful, deathThreatPhrases),
			cat(domain.CategoryEmotionalManipulation, 3, domain.EmotionManipulated, emotionalManipulationPhrases),
			cat(domain.CategoryLocationMonitoring, 2, domain.EmotionConcerned, locationMonitoringPhrases),
			cat(domain.CategoryNormal, 1, domain.EmotionNeutral, nil),
			cat(domain.CategoryFriendly, 1, domain.EmotionNeutral, nil),
		},
		TrustedSenderThreats: append([]string(nil), trustedSenderThreats...),
		Emotions:             emotions,
		SeverityTiers:        tiers,
	}
}

// Default returns a registry built from the built-in tables.
func Default() *Registry {
	r, err := New(DefaultDefinition())
	if err != nil {
		// The built-in tables are covered by tests; failure here is a programming error.
		panic(err)
	}
	return r
}
