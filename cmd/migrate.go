package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mounikasaka1/hackai/internal/bootstrap"
	"github.com/mounikasaka1/hackai/internal/database"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the history database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			db, err := bootstrap.OpenDatabase(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return database.MigrateDown(db, steps, rt.log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				rt, err := opts.setup()
				if err != nil {
					return err
				}
				db, err := bootstrap.OpenDatabase(cmd.Context(), rt.cfg, rt.log)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				return database.MigrateUp(db, rt.log)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				rt, err := opts.setup()
				if err != nil {
					return err
				}
				db, err := bootstrap.OpenDatabase(cmd.Context(), rt.cfg, rt.log)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()

				v, dirty, err := database.MigrationVersion(db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}
