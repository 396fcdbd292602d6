package classifier

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/patterns"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// RulePolicy holds the sender-level policy of the rule cascade.
type RulePolicy struct {
	// TrustedSenderOverride enables the trusted-sender short-circuit: such a
	// sender is only checked for explicit threat words and is otherwise
	// labelled Friendly.
	TrustedSenderOverride bool
	// TrustedSenders are compared case-insensitively after trimming.
	TrustedSenders []string
}

// Fingerprint renders the policy as it is applied: the override flag and the
// sorted, de-duplicated sender keys.
func (p RulePolicy) Fingerprint() string {
	keys := make([]string, 0, len(p.TrustedSenders))
	for _, s := range p.TrustedSenders {
		if key := senderKey(s); key != "" {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	return "override=" + strconv.FormatBool(p.TrustedSenderOverride) + ";trusted=" + strings.Join(keys, ",")
}

// RuleMatch describes why the cascade chose a category.
type RuleMatch struct {
	Category       domain.Category `json:"category"`
	MatchedPhrases []string        `json:"matched_phrases,omitempty"`
	TrustedSender  bool            `json:"trusted_sender"`
}

type cascadeStep struct {
	category domain.Category
	matcher  *PhraseMatcher
}

// RuleClassifier runs the first-match-wins priority cascade.
type RuleClassifier struct {
	cascade   []cascadeStep
	threats   *PhraseMatcher
	override  bool
	trusted   map[string]struct{}
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// NewRuleClassifier compiles one matcher per category in registry priority order.
func NewRuleClassifier(reg *patterns.Registry, policy RulePolicy, log logger.Logger, tp *telemetry.Provider) *RuleClassifier {
	if log == nil {
		log = logger.NewNop()
	}

	order := reg.PriorityOrder()
	cascade := make([]cascadeStep, 0, len(order))
	for _, c := range order {
		cascade = append(cascade, cascadeStep{category: c, matcher: NewPhraseMatcher(reg.Phrases(c))})
	}

	trusted := make(map[string]struct{}, len(policy.TrustedSenders))
	for _, s := range policy.TrustedSenders {
		if key := senderKey(s); key != "" {
			trusted[key] = struct{}{}
		}
	}

	rc := &RuleClassifier{
		cascade:   cascade,
		threats:   NewPhraseMatcher(reg.TrustedSenderThreats()),
		override:  policy.TrustedSenderOverride,
		trusted:   trusted,
		logger:    log,
		telemetry: tp,
	}

	if rc.override && len(trusted) > 0 {
		log.Warn("trusted-sender override enabled: listed senders are only checked for threat words",
			logger.Strings("trusted_senders", policy.TrustedSenders))
	}

	return rc
}

// Classify returns the incident category for text from senderID. Every
// outcome is terminal.
func (c *RuleClassifier) Classify(text, senderID string) (domain.Category, bool) {
	return c.Explain(text, senderID).Category, true
}

// Explain runs the cascade and reports the matched phrases.
func (c *RuleClassifier) Explain(text, senderID string) RuleMatch {
	start := time.Now()
	defer func() { c.telemetry.RecordRuleMatch(time.Since(start)) }()

	normalized := Normalize(text)

	if c.isTrusted(senderID) {
		return c.trustedOutcome(normalized, senderID)
	}
	return c.cascadeMatch(normalized)
}

// Cascade runs the category cascade without any sender policy.
func (c *RuleClassifier) Cascade(text string) domain.Category {
	return c.cascadeMatch(Normalize(text)).Category
}

func (c *RuleClassifier) cascadeMatch(normalized string) RuleMatch {
	for _, step := range c.cascade {
		if matched := step.matcher.Matches(normalized); len(matched) > 0 {
			return RuleMatch{Category: step.category, MatchedPhrases: matched}
		}
	}
	return RuleMatch{Category: domain.CategoryNormal}
}

func (c *RuleClassifier) trustedOutcome(normalized, senderID string) RuleMatch {
	match := RuleMatch{Category: domain.CategoryFriendly, TrustedSender: true}
	if hits := c.threats.Matches(normalized); len(hits) > 0 {
		match.Category = domain.CategoryDeathThreat
		match.MatchedPhrases = hits
	}

	c.telemetry.RecordTrustedSenderOverride(match.Category.String())
	c.logger.Warn("trusted-sender override fired; concerning categories were not evaluated",
		logger.String("sender", senderID),
		logger.String("outcome", match.Category.String()),
		logger.Strings("threat_words", match.MatchedPhrases),
	)

	return match
}

func (c *RuleClassifier) isTrusted(senderID string) bool {
	if !c.override || len(c.trusted) == 0 {
		return false
	}
	_, ok := c.trusted[senderKey(senderID)]
	return ok
}

func senderKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
