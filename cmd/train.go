package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mounikasaka1/hackai/internal/dataset"
	"github.com/mounikasaka1/hackai/internal/training"
)

func newTrainCommand(opts *globalOptions) *cobra.Command {
	var (
		data     string
		output   string
		testSize float64
		trees    int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model artifact from a labelled CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = rt.log.Sync() }()

			set, err := dataset.ReadTrainingFile(data)
			if err != nil {
				return err
			}

			to := training.Options{
				Features:  rt.cfg.Training.Features,
				Forest:    rt.cfg.Training.Forest,
				TestSize:  rt.cfg.Training.TestSize,
				OutputDir: rt.cfg.Model.ArtifactDir,
			}
			if output != "" {
				to.OutputDir = output
			}
			if testSize > 0 {
				to.TestSize = testSize
			}
			if trees > 0 {
				to.Forest.Trees = trees
			}
			if cmd.Flags().Changed("seed") {
				to.Forest.Seed = seed
			}
			if to.Forest.Workers == 0 {
				to.Forest.Workers = rt.cfg.Service.Concurrency
			}

			_, report, err := training.NewTrainer(rt.log, rt.tp).Train(cmd.Context(), set, to)
			if err != nil {
				return err
			}
			training.RenderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "labelled training CSV (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "artifact directory (default model.artifact_dir)")
	cmd.Flags().Float64Var(&testSize, "test-size", 0, "held-out fraction (overrides training.test_size)")
	cmd.Flags().IntVar(&trees, "trees", 0, "trees per forest (overrides training.forest.trees)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (overrides training.forest.seed)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
