package patterns_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/patterns"
)

func TestDefault_PriorityOrder(t *testing.T) {
	t.Parallel()

	r := patterns.Default()
	assert.Equal(t, []domain.Category{
		domain.CategoryStalking,
		domain.CategoryCoerciveControl,
		domain.CategoryDeathThreat,
		domain.CategoryEmotionalManipulation,
		domain.CategoryLocationMonitoring,
	}, r.PriorityOrder())
}

func TestDefault_StableAcrossBuilds(t *testing.T) {
	t.Parallel()

	a, b := patterns.Default(), patterns.Default()
	for _, c := range a.PriorityOrder() {
		assert.Equal(t, a.Phrases(c), b.Phrases(c), c.String())
	}
	assert.Equal(t, a.SeverityTiers(), b.SeverityTiers())
}

func TestRegistry_Fingerprint(t *testing.T) {
	t.Parallel()

	base := patterns.Default().Fingerprint()
	require.Len(t, base, 64)
	assert.Equal(t, base, patterns.Default().Fingerprint())

	testCases := []struct {
		name    string
		mutate  func(*patterns.Definition)
		changed bool
	}{
		{"version tag only", func(d *patterns.Definition) { d.Version = "builtin-2" }, false},
		{"phrase case and spacing", func(d *patterns.Definition) {
			d.Categories[0].Phrases[0] = "  " + strings.ToUpper(d.Categories[0].Phrases[0]) + " "
		}, false},
		{"added phrase", func(d *patterns.Definition) {
			d.Categories[0].Phrases = append(d.Categories[0].Phrases, "parked across the street")
		}, true},
		{"category severity", func(d *patterns.Definition) { d.Categories[0].Severity = 5 }, true},
		{"threat words", func(d *patterns.Definition) { d.TrustedSenderThreats = []string{"kill"} }, true},
		{"severity tier", func(d *patterns.Definition) { d.SeverityTiers[0].Severity = 2 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			def := patterns.DefaultDefinition()
			tc.mutate(&def)

			r, err := patterns.New(def)
			require.NoError(t, err)
			if tc.changed {
				assert.NotEqual(t, base, r.Fingerprint())
			} else {
				assert.Equal(t, base, r.Fingerprint())
			}
		})
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	t.Parallel()

	r := patterns.Default()
	phrases := r.Phrases(domain.CategoryStalking)
	phrases[0] = "mutated"

	assert.Equal(t, "outside your place", r.Phrases(domain.CategoryStalking)[0])

	order := r.PriorityOrder()
	order[0] = domain.CategoryFriendly
	assert.Equal(t, domain.CategoryStalking, r.PriorityOrder()[0])
}

func TestRegistry_DefaultsForBenignOutcomes(t *testing.T) {
	t.Parallel()

	r := patterns.Default()
	for _, c := range []domain.Category{domain.CategoryNormal, domain.CategoryFriendly} {
		set, ok := r.Set(c)
		require.True(t, ok)
		assert.Equal(t, 1, set.DefaultSeverity)
		assert.Equal(t, domain.EmotionNeutral, set.DefaultEmotion)
		assert.Equal(t, domain.CrimeNo, set.CrimeFlag())
	}

	stalking, ok := r.Set(domain.CategoryStalking)
	require.True(t, ok)
	assert.Equal(t, domain.CrimeYes, stalking.CrimeFlag())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*patterns.Definition)
	}{
		{"empty registry", func(d *patterns.Definition) { *d = patterns.Definition{} }},
		{"unknown category", func(d *patterns.Definition) { d.Priority = append(d.Priority, "Spam") }},
		{"duplicate priority", func(d *patterns.Definition) { d.Priority = append(d.Priority, "Stalking") }},
		{"default outcome in priority", func(d *patterns.Definition) { d.Priority = append(d.Priority, "Friendly") }},
		{"missing from priority", func(d *patterns.Definition) { d.Priority = d.Priority[:4] }},
		{"empty phrase list", func(d *patterns.Definition) { d.Categories[0].Phrases = nil }},
		{"severity out of range", func(d *patterns.Definition) { d.Categories[1].Severity = 9 }},
		{"bad emotion", func(d *patterns.Definition) { d.Categories[1].Emotion = "Angry" }},
		{"bad tier", func(d *patterns.Definition) { d.SeverityTiers[0].Severity = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			def := patterns.DefaultDefinition()
			tc.mutate(&def)

			_, err := patterns.New(def)
			require.Error(t, err)

			var cfgErr *domain.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "want ConfigError, got %T", err)
		})
	}
}

func TestLoad_ShippedFileMatchesDefaults(t *testing.T) {
	t.Parallel()

	r, err := patterns.Load(filepath.Join("..", "..", "configs", "patterns.yml"))
	require.NoError(t, err)

	def := patterns.Default()
	assert.Equal(t, def.PriorityOrder(), r.PriorityOrder())
	for _, c := range def.PriorityOrder() {
		assert.Equal(t, def.Phrases(c), r.Phrases(c), c.String())
	}
	for _, e := range domain.Emotions() {
		assert.Equal(t, def.EmotionPhrases(e), r.EmotionPhrases(e), e.String())
	}
	assert.Equal(t, def.SeverityTiers(), r.SeverityTiers())
	assert.Equal(t, def.TrustedSenderThreats(), r.TrustedSenderThreats())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("priority: [Stalking\n"), 0o600))

	_, err := patterns.Load(bad)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, bad, cfgErr.Source)

	_, err = patterns.Load(filepath.Join(dir, "missing.yml"))
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoad_TiersSortedHighFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "p.yml")
	doc := `
priority: [Stalking, Coercive Control, Death Threat, Emotional Manipulation, Location Monitoring]
categories:
  - {name: Stalking, severity: 4, emotion: Fearful, phrases: [watching you]}
  - {name: Coercive Control, severity: 3, emotion: Manipulated, phrases: [must]}
  - {name: Death Threat, severity: 5, emotion: Fearful, phrases: [kill]}
  - {name: Emotional Manipulation, severity: 3, emotion: Manipulated, phrases: [your fault]}
  - {name: Location Monitoring, severity: 2, emotion: Concerned, phrases: [where are you]}
severity_tiers:
  - {severity: 1, phrases: [hello]}
  - {severity: 5, phrases: [THREAT]}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	r, err := patterns.Load(path)
	require.NoError(t, err)

	tiers := r.SeverityTiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, 5, tiers[0].Severity)
	assert.Equal(t, []string{"threat"}, tiers[0].Phrases)
	assert.Equal(t, []string{"kill", "death", "die", "hurt"}, r.TrustedSenderThreats())
}
