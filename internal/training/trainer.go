// Package training runs the end-to-end model training pipeline.
package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mounikasaka1/hackai/internal/dataset"
	"github.com/mounikasaka1/hackai/internal/features"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/model"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// ErrTooFewExamples is returned when the split leaves nothing to train on.
var ErrTooFewExamples = errors.New("training: too few examples to split")

// Options configures one training run.
type Options struct {
	Features features.Options
	Forest   model.Params
	TestSize float64
	// OutputDir receives the artifact. Empty skips saving.
	OutputDir string
}

// Report describes a finished run.
type Report struct {
	Version     string         `json:"version"`
	Examples    int            `json:"examples"`
	TrainSize   int            `json:"train_size"`
	TestSize    int            `json:"test_size"`
	NumFeatures int            `json:"num_features"`
	Accuracy    model.Accuracy `json:"accuracy"`
	Duration    time.Duration  `json:"duration"`
	OutputDir   string         `json:"output_dir,omitempty"`
}

// Trainer serialises training runs; concurrent Train calls queue on its lock.
type Trainer struct {
	mu        sync.Mutex
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// NewTrainer creates a Trainer.
func NewTrainer(log logger.Logger, tp *telemetry.Provider) *Trainer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Trainer{logger: log, telemetry: tp}
}

// Train splits set, fits the vectorizer and model on the training part,
// evaluates on the held-out part and, if requested, saves the artifact.
func (t *Trainer) Train(ctx context.Context, set *dataset.TrainingSet, opts Options) (*model.Artifact, *Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	ctx, span := t.telemetry.StartSpan(ctx, "training.Train", attribute.Int("examples", set.Len()))
	defer span.End()

	art, report, err := t.run(ctx, set, opts)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	t.telemetry.RecordTraining(status, time.Since(start))
	if err != nil {
		return nil, nil, err
	}

	report.Duration = time.Since(start)
	t.logger.Info("Training complete",
		logger.String("version", report.Version),
		logger.Int("train_size", report.TrainSize),
		logger.Int("test_size", report.TestSize),
		logger.Int("num_features", report.NumFeatures),
		logger.Any("accuracy", report.Accuracy),
		logger.Duration("duration", report.Duration),
	)
	return art, report, nil
}

func (t *Trainer) run(ctx context.Context, set *dataset.TrainingSet, opts Options) (*model.Artifact, *Report, error) {
	trainIdx, testIdx := model.StratifiedSplit(set.Labels.IncidentType, opts.TestSize, opts.Forest.Seed)
	if len(trainIdx) == 0 {
		return nil, nil, ErrTooFewExamples
	}

	trainTexts := pick(set.Texts, trainIdx)
	testTexts := pick(set.Texts, testIdx)
	trainLabels := set.Labels.Subset(trainIdx)
	testLabels := set.Labels.Subset(testIdx)

	t.logger.Info("Fitting vectorizer",
		logger.Int("train_size", len(trainIdx)),
		logger.Int("test_size", len(testIdx)),
	)
	vec, err := features.Fit(trainTexts, opts.Features)
	if err != nil {
		return nil, nil, fmt.Errorf("fit vectorizer: %w", err)
	}

	t.logger.Info("Training forests",
		logger.Int("num_features", vec.NumFeatures()),
		logger.Int("trees", opts.Forest.Trees),
	)
	m, err := model.Train(ctx, vec.TransformAll(trainTexts), trainLabels, opts.Forest)
	if err != nil {
		return nil, nil, err
	}

	acc := model.Accuracy{}
	if len(testIdx) > 0 {
		acc, err = model.Evaluate(m, vec.TransformAll(testTexts), testLabels)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate: %w", err)
		}
	}

	art := model.NewArtifact(vec, m, opts.Forest)
	if opts.OutputDir != "" {
		if err := art.Save(opts.OutputDir); err != nil {
			return nil, nil, fmt.Errorf("save artifact: %w", err)
		}
	}

	return art, &Report{
		Version:     art.Version,
		Examples:    set.Len(),
		TrainSize:   len(trainIdx),
		TestSize:    len(testIdx),
		NumFeatures: vec.NumFeatures(),
		Accuracy:    acc,
		OutputDir:   opts.OutputDir,
	}, nil
}

func pick(xs []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}
