package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mounikasaka1/hackai/internal/cache"
	"github.com/mounikasaka1/hackai/internal/classifier"
	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/model"
	"github.com/mounikasaka1/hackai/internal/patterns"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// ClassifierComponents holds the classifier and what it was built from.
type ClassifierComponents struct {
	Registry   *patterns.Registry
	Artifact   *model.Artifact
	Classifier *classifier.Classifier
	// Service is Classifier, wrapped by the result cache when redis is
	// configured. Callers classify through it.
	Service processor.MessageClassifier
	redis   *redis.Client
}

// Close releases the redis connection, if any.
func (c *ClassifierComponents) Close() error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// LoadRegistry reads the pattern file named in cfg or returns the built-in
// tables.
func LoadRegistry(cfg *config.Config, log logger.Logger) (*patterns.Registry, error) {
	if cfg.Patterns.Path == "" {
		return patterns.Default(), nil
	}
	reg, err := patterns.Load(cfg.Patterns.Path)
	if err != nil {
		return nil, err
	}
	log.Info("Pattern registry loaded",
		logger.String("path", cfg.Patterns.Path),
		logger.String("version", reg.Version()),
		logger.String("fingerprint", reg.Fingerprint()[:12]),
	)
	return reg, nil
}

// SetupClassifier builds the classifier for the configured mode. In model
// mode the artifact must load; in rules mode no artifact is read.
func SetupClassifier(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	tp *telemetry.Provider,
) (*ClassifierComponents, error) {
	reg, err := LoadRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	mode, err := classifier.ParseMode(cfg.Classification.Mode)
	if err != nil {
		return nil, err
	}

	comps := &ClassifierComponents{Registry: reg}

	var predictor classifier.Predictor
	if mode == classifier.ModeModel {
		artifact, loadErr := model.Load(cfg.Model.ArtifactDir)
		if loadErr != nil {
			return nil, loadErr
		}
		log.Info("Model artifact loaded",
			logger.String("dir", cfg.Model.ArtifactDir),
			logger.String("version", artifact.Version),
		)
		comps.Artifact = artifact
		predictor = artifact
	}

	c, err := classifier.New(classifier.Config{
		Mode:         mode,
		AllowEmpty:   cfg.Classification.AllowEmpty,
		InferEmotion: cfg.Classification.InferEmotion,
		Policy: classifier.RulePolicy{
			TrustedSenderOverride: cfg.Classification.TrustedSenderOverride,
			TrustedSenders:        cfg.Classification.TrustedSenders,
		},
	}, reg, predictor, log, tp)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	comps.Classifier = c
	comps.Service = c

	if cfg.Redis.URL == "" {
		return comps, nil
	}

	client, err := cache.NewClient(ctx, redisAddr(cfg.Redis.URL), cfg.Redis.Password, cfg.Redis.Database)
	if err != nil {
		log.Warn("Result cache unavailable, classifying without it", logger.Error(err))
		return comps, nil
	}
	comps.redis = client
	comps.Service = cache.NewCachingClassifier(c, client, cache.Options{
		TTL:       cfg.Redis.CacheTTL,
		Namespace: cacheNamespace(c, comps.Artifact),
	}, log, tp)
	log.Info("Result cache enabled",
		logger.String("redis", redisAddr(cfg.Redis.URL)),
		logger.Duration("ttl", cfg.Redis.CacheTTL),
	)

	return comps, nil
}

func redisAddr(url string) string {
	return strings.TrimPrefix(url, "redis://")
}

// cacheNamespace changes whenever anything that shapes a result does: the
// classifier settings, the registry contents and the loaded artifact.
func cacheNamespace(c *classifier.Classifier, artifact *model.Artifact) string {
	ns := c.Fingerprint()
	if artifact != nil {
		ns += ";artifact=" + artifact.Version
	}
	return ns
}
