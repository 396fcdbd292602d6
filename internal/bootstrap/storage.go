package bootstrap

import (
	"context"

	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/storage"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// SetupElasticsearch returns an indexer for the classified-messages index,
// or nil when Elasticsearch is not configured or unreachable.
func SetupElasticsearch(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	tp *telemetry.Provider,
) *storage.Indexer {
	if cfg.Elasticsearch.URL == "" {
		return nil
	}

	client, err := storage.NewClient(ctx, cfg.Elasticsearch)
	if err != nil {
		log.Warn("Failed to connect to Elasticsearch, indexing disabled", logger.Error(err))
		return nil
	}

	idx := storage.NewIndexer(client, cfg.Elasticsearch.IndexName(), log, tp)
	if err = idx.EnsureIndex(ctx); err != nil {
		log.Warn("Failed to prepare Elasticsearch index, indexing disabled",
			logger.String("index", idx.IndexName()),
			logger.Error(err),
		)
		return nil
	}

	log.Info("Elasticsearch connected", logger.String("index", idx.IndexName()))
	return idx
}
