package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mounikasaka1/hackai/internal/bootstrap"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/profiling"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = rt.log.Sync() }()
			if port > 0 {
				rt.cfg.Service.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			profiler, err := profiling.Start(rt.cfg.Profiling, "serve", rt.cfg.Service.Version, rt.log)
			if err != nil {
				rt.log.Warn("Profiling disabled", logger.Error(err))
			}
			defer func() { _ = profiler.Stop() }()

			comps, err := bootstrap.NewHTTPComponents(ctx, rt.cfg, rt.log, rt.tp)
			if err != nil {
				return err
			}

			runErr := comps.Server.Run(ctx)
			return errors.Join(runErr, comps.Close())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides service.port)")
	return cmd
}
