// Package bootstrap wires configuration, logging and the classification
// components for the CLI commands.
package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/logger"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "configs/config.yml"

// LoadConfig resolves the config path, loads and validates it. A missing
// default file is not an error; an explicitly named one is.
func LoadConfig(path string, debug bool) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = config.GetConfigPath(DefaultConfigPath)
		explicit = path != DefaultConfigPath
	}
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateLogger builds the process logger from cfg.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Development = logCfg.Development || cfg.Service.Debug

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}
