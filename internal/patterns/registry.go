// Package patterns holds the phrase registry that drives the rule engine and
// the heuristic severity and emotion scorers. A Registry is immutable once
// built; every accessor hands out copies.
package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mounikasaka1/hackai/internal/domain"
)

// Definition is the serialised form of a registry.
type Definition struct {
	Version              string               `yaml:"version"`
	Priority             []string             `yaml:"priority"`
	Categories           []CategoryDefinition `yaml:"categories"`
	TrustedSenderThreats []string             `yaml:"trusted_sender_threats"`
	Emotions             map[string][]string  `yaml:"emotions"`
	SeverityTiers        []SeverityTier       `yaml:"severity_tiers"`
}

// CategoryDefinition describes one category and the result it implies.
type CategoryDefinition struct {
	Name     string   `yaml:"name"`
	Severity int      `yaml:"severity"`
	Emotion  string   `yaml:"emotion"`
	Phrases  []string `yaml:"phrases"`
}

// SeverityTier maps a phrase list to a severity.
type SeverityTier struct {
	Severity int      `yaml:"severity"`
	Phrases  []string `yaml:"phrases"`
}

// PatternSet is a category's phrases plus the defaults a match implies.
type PatternSet struct {
	Category        domain.Category
	Phrases         []string
	DefaultSeverity int
	DefaultEmotion  domain.Emotion
}

// CrimeFlag is the crime flag implied by a match on this set.
func (p PatternSet) CrimeFlag() string {
	return domain.CrimeFlag(p.Category, p.DefaultSeverity)
}

// Registry is the validated, immutable phrase registry.
type Registry struct {
	version     string
	fingerprint string
	sets        map[domain.Category]PatternSet
	priority    []domain.Category
	emotions    map[domain.Emotion][]string
	tiers       []SeverityTier
	threats     []string
}

// Load reads a YAML definition from path and validates it.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Source: path, Reason: "read pattern file", Err: err}
	}

	var def Definition
	if err = yaml.Unmarshal(data, &def); err != nil {
		return nil, &domain.ConfigError{Source: path, Reason: "parse pattern file", Err: err}
	}

	r, err := New(def)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path
		}
		return nil, err
	}
	return r, nil
}

// New validates def and builds a Registry.
func New(def Definition) (*Registry, error) {
	if len(def.Categories) == 0 || len(def.Priority) == 0 {
		return nil, configErr("registry has no categories")
	}

	r := &Registry{
		version:  def.Version,
		sets:     make(map[domain.Category]PatternSet, len(def.Categories)),
		emotions: make(map[domain.Emotion][]string, len(domain.Emotions())),
	}

	for _, cd := range def.Categories {
		set, err := buildSet(cd)
		if err != nil {
			return nil, err
		}
		if _, dup := r.sets[set.Category]; dup {
			return nil, configErr("category %q defined twice", cd.Name)
		}
		r.sets[set.Category] = set
	}

	// The two benign outcomes always exist even if the file omits them.
	for _, c := range []domain.Category{domain.CategoryNormal, domain.CategoryFriendly} {
		if _, ok := r.sets[c]; !ok {
			r.sets[c] = PatternSet{Category: c, DefaultSeverity: domain.MinSeverity, DefaultEmotion: domain.EmotionNeutral}
		}
	}

	if err := r.buildPriority(def.Priority); err != nil {
		return nil, err
	}

	for name, phrases := range def.Emotions {
		e, err := domain.ParseEmotion(name)
		if err != nil {
			return nil, configErr("emotions: %v", err)
		}
		r.emotions[e] = normalizePhrases(phrases)
	}

	tiers, err := buildTiers(def.SeverityTiers)
	if err != nil {
		return nil, err
	}
	r.tiers = tiers

	r.threats = normalizePhrases(def.TrustedSenderThreats)
	if len(r.threats) == 0 {
		r.threats = normalizePhrases(trustedSenderThreats)
	}

	r.fingerprint = r.digest()
	return r, nil
}

// digest hashes the normalised tables in a fixed order. The declared version
// is not part of it.
func (r *Registry) digest() string {
	h := sha256.New()
	field := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}

	for _, c := range r.priority {
		field("priority", c.String())
	}
	for _, c := range domain.Categories() {
		set, ok := r.sets[c]
		if !ok {
			continue
		}
		field("category", c.String(), fmt.Sprint(set.DefaultSeverity), set.DefaultEmotion.String())
		field(set.Phrases...)
	}
	for _, e := range domain.Emotions() {
		if phrases, ok := r.emotions[e]; ok {
			field("emotion", e.String())
			field(phrases...)
		}
	}
	for _, t := range r.tiers {
		field("tier", fmt.Sprint(t.Severity))
		field(t.Phrases...)
	}
	field("threats")
	field(r.threats...)

	return hex.EncodeToString(h.Sum(nil))
}

func buildSet(cd CategoryDefinition) (PatternSet, error) {
	c, err := domain.ParseCategory(cd.Name)
	if err != nil {
		return PatternSet{}, configErr("categories: %v", err)
	}
	if cd.Severity < domain.MinSeverity || cd.Severity > domain.MaxSeverity {
		return PatternSet{}, configErr("category %q: severity %d outside %d-%d",
			cd.Name, cd.Severity, domain.MinSeverity, domain.MaxSeverity)
	}
	emo := domain.EmotionNeutral
	if cd.Emotion != "" {
		if emo, err = domain.ParseEmotion(cd.Emotion); err != nil {
			return PatternSet{}, configErr("category %q: %v", cd.Name, err)
		}
	}
	return PatternSet{
		Category:        c,
		Phrases:         normalizePhrases(cd.Phrases),
		DefaultSeverity: cd.Severity,
		DefaultEmotion:  emo,
	}, nil
}

func (r *Registry) buildPriority(names []string) error {
	seen := make(map[domain.Category]bool, len(names))
	for _, name := range names {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return configErr("priority: %v", err)
		}
		if !c.IsConcerning() {
			return configErr("priority: %q is a default outcome and cannot be matched", name)
		}
		if seen[c] {
			return configErr("priority: %q listed twice", name)
		}
		set, ok := r.sets[c]
		if !ok {
			return configErr("priority: %q has no category definition", name)
		}
		if len(set.Phrases) == 0 {
			return configErr("category %q has no phrases", name)
		}
		seen[c] = true
		r.priority = append(r.priority, c)
	}

	for c := range r.sets {
		if c.IsConcerning() && !seen[c] {
			return configErr("category %q is missing from the priority list", c)
		}
	}
	return nil
}

func buildTiers(in []SeverityTier) ([]SeverityTier, error) {
	if len(in) == 0 {
		in = defaultSeverityTiers
	}
	out := make([]SeverityTier, 0, len(in))
	for _, t := range in {
		if t.Severity < domain.MinSeverity || t.Severity > domain.MaxSeverity {
			return nil, configErr("severity tier %d outside %d-%d", t.Severity, domain.MinSeverity, domain.MaxSeverity)
		}
		out = append(out, SeverityTier{Severity: t.Severity, Phrases: normalizePhrases(t.Phrases)})
	}
	// Evaluation is always high to low regardless of file order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out, nil
}

// Version is the registry's declared version tag.
func (r *Registry) Version() string { return r.version }

// Fingerprint is a sha256 of the registry's effective contents.
func (r *Registry) Fingerprint() string { return r.fingerprint }

// PriorityOrder returns the matchable categories in cascade order.
func (r *Registry) PriorityOrder() []domain.Category {
	return append([]domain.Category(nil), r.priority...)
}

// Phrases returns the phrase list for c in insertion order.
func (r *Registry) Phrases(c domain.Category) []string {
	return append([]string(nil), r.sets[c].Phrases...)
}

// Set returns the pattern set for c.
func (r *Registry) Set(c domain.Category) (PatternSet, bool) {
	set, ok := r.sets[c]
	if !ok {
		return PatternSet{}, false
	}
	set.Phrases = append([]string(nil), set.Phrases...)
	return set, true
}

// EmotionOrder is the fixed tie-break order of emotions.
func (r *Registry) EmotionOrder() []domain.Emotion {
	return domain.Emotions()
}

// EmotionPhrases returns the phrase list for e.
func (r *Registry) EmotionPhrases(e domain.Emotion) []string {
	return append([]string(nil), r.emotions[e]...)
}

// SeverityTiers returns the tiers, highest severity first.
func (r *Registry) SeverityTiers() []SeverityTier {
	out := make([]SeverityTier, len(r.tiers))
	for i, t := range r.tiers {
		out[i] = SeverityTier{Severity: t.Severity, Phrases: append([]string(nil), t.Phrases...)}
	}
	return out
}

// TrustedSenderThreats is the word set checked for trusted senders.
func (r *Registry) TrustedSenderThreats() []string {
	return append([]string(nil), r.threats...)
}

func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func configErr(format string, args ...any) *domain.ConfigError {
	return &domain.ConfigError{Source: "patterns", Reason: fmt.Sprintf(format, args...)}
}

