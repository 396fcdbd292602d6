package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/database"
	"github.com/mounikasaka1/hackai/internal/logger"
)

// DatabaseComponents holds the history database and its repository.
type DatabaseComponents struct {
	DB      *sqlx.DB
	History *database.HistoryRepository
}

// Close closes the connection.
func (d *DatabaseComponents) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// OpenDatabase connects without migrating.
func OpenDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	log.Info("Connecting to history database",
		logger.String("driver", cfg.Database.Driver),
		logger.String("host", cfg.Database.Host),
		logger.String("path", cfg.Database.Path),
	)
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// SetupDatabase connects, migrates and returns the history repository. It
// returns nil when the database is disabled.
func SetupDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*DatabaseComponents, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}

	db, err := OpenDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err = database.MigrateUp(db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info("History database ready")
	return &DatabaseComponents{DB: db, History: database.NewHistoryRepository(db)}, nil
}
