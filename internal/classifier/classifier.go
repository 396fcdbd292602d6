package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/model"
	"github.com/mounikasaka1/hackai/internal/patterns"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// Mode selects the classification backend.
type Mode string

const (
	ModeRules Mode = "rules"
	ModeModel Mode = "model"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRules, "":
		return ModeRules, nil
	case ModeModel:
		return ModeModel, nil
	default:
		return "", fmt.Errorf("unknown classification mode %q", s)
	}
}

// ErrNoPredictor is returned when model mode is selected without a model.
var ErrNoPredictor = errors.New("model mode selected but no model is loaded")

// Predictor is the narrow view of a trained model the orchestrator needs.
type Predictor interface {
	Predict(text string) (model.Prediction, error)
}

// Config configures the orchestrator.
type Config struct {
	Mode Mode
	// AllowEmpty turns empty text into a Normal Communication result instead
	// of an InputError.
	AllowEmpty bool
	// InferEmotion uses the phrase-count inferencer on the rule path instead
	// of the category default.
	InferEmotion bool
	Policy       RulePolicy
}

// Fingerprint renders every setting that can change the result for a given
// message.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("mode=%s;allow_empty=%t;infer_emotion=%t;%s",
		c.Mode, c.AllowEmpty, c.InferEmotion, c.Policy.Fingerprint())
}

// Classifier is the entry point for single-message classification. It holds
// only read-only state and is safe for concurrent use.
type Classifier struct {
	config    Config
	registry  *patterns.Registry
	rules     *RuleClassifier
	severity  *SeverityCalculator
	emotions  *EmotionInferencer
	predictor Predictor
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// New wires the orchestrator. predictor may be nil in rules mode.
func New(
	cfg Config,
	reg *patterns.Registry,
	predictor Predictor,
	log logger.Logger,
	tp *telemetry.Provider,
) (*Classifier, error) {
	if reg == nil {
		return nil, &domain.ConfigError{Source: "classifier", Reason: "pattern registry is required"}
	}
	if log == nil {
		log = logger.NewNop()
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, &domain.ConfigError{Source: "classifier", Reason: err.Error()}
	}
	cfg.Mode = mode
	if mode == ModeModel && predictor == nil {
		return nil, ErrNoPredictor
	}

	return &Classifier{
		config:    cfg,
		registry:  reg,
		rules:     NewRuleClassifier(reg, cfg.Policy, log, tp),
		severity:  NewSeverityCalculator(reg),
		emotions:  NewEmotionInferencer(reg),
		predictor: predictor,
		logger:    log,
		telemetry: tp,
	}, nil
}

// Mode reports the active backend.
func (c *Classifier) Mode() Mode { return c.config.Mode }

// Fingerprint identifies the classifier's behaviour: its settings and the
// contents of its registry. Results are a function of the message and this
// value, plus the model in model mode.
func (c *Classifier) Fingerprint() string {
	return c.config.Fingerprint() + ";registry=" + c.registry.Fingerprint()
}

// ModelLoaded reports whether a predictor is attached.
func (c *Classifier) ModelLoaded() bool { return c.predictor != nil }

// Rules exposes the rule cascade for callers that need match details.
func (c *Classifier) Rules() *RuleClassifier { return c.rules }

// Severity exposes the standalone severity calculator.
func (c *Classifier) Severity() *SeverityCalculator { return c.severity }

// Emotions exposes the emotional-state inferencer.
func (c *Classifier) Emotions() *EmotionInferencer { return c.emotions }

// Classify labels one message.
func (c *Classifier) Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error) {
	start := time.Now()
	_, span := c.telemetry.StartSpan(ctx, "classifier.Classify",
		attribute.String("mode", string(c.config.Mode)))
	defer span.End()

	if strings.TrimSpace(msg.Text) == "" {
		if !c.config.AllowEmpty {
			c.telemetry.RecordClassificationError("input")
			return nil, domain.NewEmptyTextError()
		}
		return c.emptyResult(), nil
	}

	var (
		result *domain.ClassificationResult
		err    error
	)
	switch c.config.Mode {
	case ModeModel:
		result, err = c.classifyWithModel(msg)
	default:
		result = c.classifyWithRules(msg)
	}
	if err != nil {
		c.telemetry.RecordClassificationError(errorKind(err))
		span.RecordError(err)
		return nil, err
	}

	duration := time.Since(start)
	c.telemetry.RecordClassification(string(result.Source), result.IncidentType.String(), duration)
	c.logger.Debug("message classified",
		logger.String("sender", msg.SenderID),
		logger.String("incident_type", result.IncidentType.String()),
		logger.Int("severity", result.Severity),
		logger.String("source", string(result.Source)),
		logger.Duration("duration", duration),
	)

	return result, nil
}

func (c *Classifier) classifyWithRules(msg domain.Message) *domain.ClassificationResult {
	category, _ := c.rules.Classify(msg.Text, msg.SenderID)

	set, ok := c.registry.Set(category)
	if !ok {
		set = patterns.PatternSet{Category: category, DefaultSeverity: domain.MinSeverity}
	}

	emotion := set.DefaultEmotion
	if c.config.InferEmotion {
		emotion = c.emotions.Infer(msg.Text, category)
	}

	severity := domain.ClampSeverity(set.DefaultSeverity)
	return &domain.ClassificationResult{
		IncidentType:   category,
		EmotionalState: emotion,
		Severity:       severity,
		PotentialCrime: domain.CrimeFlag(category, severity),
		Confidence:     Confidence(category, severity),
		Source:         domain.SourceRule,
		ClassifiedAt:   time.Now().UTC(),
	}
}

func (c *Classifier) classifyWithModel(msg domain.Message) (*domain.ClassificationResult, error) {
	pred, err := c.predictor.Predict(msg.Text)
	if err != nil {
		return nil, fmt.Errorf("model predict: %w", err)
	}

	category, err := domain.ParseCategory(pred.IncidentType)
	if err != nil {
		return nil, &domain.UnseenLabelError{Target: model.TargetIncidentType, Label: pred.IncidentType}
	}
	emotion, err := domain.ParseEmotion(pred.EmotionalState)
	if err != nil {
		return nil, &domain.UnseenLabelError{Target: model.TargetEmotionalState, Label: pred.EmotionalState}
	}
	crime, err := normalizeCrimeFlag(pred.PotentialCrime)
	if err != nil {
		return nil, &domain.UnseenLabelError{Target: model.TargetPotentialCrime, Label: pred.PotentialCrime}
	}

	severity := domain.ClampSeverity(pred.Severity)
	return &domain.ClassificationResult{
		IncidentType:   category,
		EmotionalState: emotion,
		Severity:       severity,
		PotentialCrime: crime,
		Confidence:     Confidence(category, severity),
		Source:         domain.SourceModel,
		ClassifiedAt:   time.Now().UTC(),
	}, nil
}

func (c *Classifier) emptyResult() *domain.ClassificationResult {
	return &domain.ClassificationResult{
		IncidentType:   domain.CategoryNormal,
		EmotionalState: domain.EmotionNeutral,
		Severity:       domain.MinSeverity,
		PotentialCrime: domain.CrimeNo,
		Confidence:     Confidence(domain.CategoryNormal, domain.MinSeverity),
		Source:         domain.SourceRule,
		ClassifiedAt:   time.Now().UTC(),
	}
}

// Label produces heuristic training labels for text: the cascade without
// sender policy, the inferred emotion and the tiered severity.
func (c *Classifier) Label(text string) model.Prediction {
	category := c.rules.Cascade(text)
	severity := c.severity.Severity(text)
	return model.Prediction{
		IncidentType:   category.String(),
		EmotionalState: c.emotions.Infer(text, category).String(),
		Severity:       severity,
		PotentialCrime: domain.CrimeFlag(category, severity),
	}
}

func normalizeCrimeFlag(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return domain.CrimeYes, nil
	case "n", "no", "false", "0":
		return domain.CrimeNo, nil
	default:
		return "", fmt.Errorf("unknown crime flag %q", s)
	}
}

// errorKind maps an error to a short metric label.
func errorKind(err error) string {
	var (
		inputErr  *domain.InputError
		unseenErr *domain.UnseenLabelError
		loadErr   *domain.ModelLoadError
	)
	switch {
	case errors.As(err, &inputErr):
		return "input"
	case errors.As(err, &unseenErr):
		return "unseen_label"
	case errors.As(err, &loadErr):
		return "model_load"
	default:
		return "internal"
	}
}

