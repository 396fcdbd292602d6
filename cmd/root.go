// Package cmd implements the hackai command-line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mounikasaka1/hackai/internal/bootstrap"
	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

// version is overridden at build time with
// -ldflags "-X github.com/mounikasaka1/hackai/cmd.version=...".
var version = "dev"

// processTelemetry registers on the default registry, which allows one
// registration per process.
var processTelemetry = sync.OnceValue(telemetry.NewProvider)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	debug      bool
}

// runtime is what every subcommand starts from.
type runtime struct {
	cfg *config.Config
	log logger.Logger
	tp  *telemetry.Provider
}

func (o *globalOptions) setup() (*runtime, error) {
	cfg, err := bootstrap.LoadConfig(o.configPath, o.debug)
	if err != nil {
		return nil, err
	}
	if version != "dev" {
		cfg.Service.Version = version
	}
	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, tp: processTelemetry()}, nil
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "hackai",
		Short:         "Classify harassment in message logs",
		Long:          `hackai labels messages by incident type, emotional state, severity and potential crime, using phrase rules or a trained random-forest model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default is $CONFIG_PATH or "+bootstrap.DefaultConfigPath+")")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug mode")

	root.AddCommand(
		newServeCommand(opts),
		newClassifyCommand(opts),
		newTrainCommand(opts),
		newLabelCommand(opts),
		newMigrateCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hackai version %s\n", version)
		},
	}
}

// openOutput returns the named file, or the command's stdout for "" and "-".
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
