package bootstrap

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/mounikasaka1/hackai/internal/api"
	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// HTTPComponents holds everything the serve command runs.
type HTTPComponents struct {
	Classifier *ClassifierComponents
	Database   *DatabaseComponents
	Handler    *api.Handler
	Server     *api.Server
}

// Close releases connections opened by NewHTTPComponents.
func (h *HTTPComponents) Close() error {
	return errors.Join(h.Classifier.Close(), h.Database.Close())
}

// NewHTTPComponents wires the classifier, optional sinks and the HTTP
// server.
func NewHTTPComponents(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	tp *telemetry.Provider,
) (*HTTPComponents, error) {
	cls, err := SetupClassifier(ctx, cfg, log, tp)
	if err != nil {
		return nil, err
	}

	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		_ = cls.Close()
		return nil, err
	}

	deps := api.Dependencies{
		Classifier: cls.Service,
		Batch:      processor.NewBatchProcessor(cls.Service, cfg.Service.Concurrency, log, tp),
		Health: api.HealthInfo{
			Service:     cfg.Service.Name,
			Version:     cfg.Service.Version,
			Mode:        string(cls.Classifier.Mode()),
			ModelLoaded: cls.Classifier.ModelLoaded(),
		},
		BatchTimeout:    cfg.Service.BatchTimeout,
		HistoryLimit:    cfg.Service.HistoryLimit,
		MaxHistoryLimit: cfg.Service.MaxHistoryLimit,
		Logger:          log,
	}
	if db != nil {
		deps.History = db.History
	}
	if idx := SetupElasticsearch(ctx, cfg, log, tp); idx != nil {
		deps.Indexer = idx
	}

	handler := api.NewHandler(deps)

	opts := api.RouteOptions{
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.Issuer,
		Metrics:   tp.Handler(),
	}
	if cfg.RateLimit.Enabled {
		opts.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		opts.Burst = cfg.RateLimit.Burst
	}
	if opts.JWTSecret == "" {
		log.Warn("auth.jwt_secret is not set, /api/v1 is unauthenticated")
	}

	server := api.NewServer(cfg.Service, log, func(router *gin.Engine) {
		api.SetupRoutes(router, handler, opts)
	})

	return &HTTPComponents{
		Classifier: cls,
		Database:   db,
		Handler:    handler,
		Server:     server,
	}, nil
}
