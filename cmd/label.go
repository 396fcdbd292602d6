package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mounikasaka1/hackai/internal/bootstrap"
	"github.com/mounikasaka1/hackai/internal/classifier"
	"github.com/mounikasaka1/hackai/internal/dataset"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/model"
)

func newLabelCommand(opts *globalOptions) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Label a message CSV with the phrase rules to bootstrap training data",
		Long: `Writes a training CSV with incident_type, user_emotional_state, severity_score
and potential_crime derived from the phrase rules. The trusted-sender policy is
not applied. Rows with empty text are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = rt.log.Sync() }()

			msgs, err := dataset.ReadMessagesFile(input)
			if err != nil {
				return err
			}

			reg, err := bootstrap.LoadRegistry(rt.cfg, rt.log)
			if err != nil {
				return err
			}
			c, err := classifier.New(classifier.Config{Mode: classifier.ModeRules}, reg, nil, rt.log, rt.tp)
			if err != nil {
				return err
			}

			kept := make([]domain.Message, 0, len(msgs))
			labels := make([]model.Prediction, 0, len(msgs))
			for _, m := range msgs {
				if strings.TrimSpace(m.Text) == "" {
					continue
				}
				kept = append(kept, m)
				labels = append(labels, c.Label(m.Text))
			}
			rt.log.Info("Labelled messages",
				logger.Int("labelled", len(kept)),
				logger.Int("skipped", len(msgs)-len(kept)),
			)

			w, closeOut, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if err = dataset.WriteTraining(w, kept, labels); err != nil {
				_ = closeOut()
				return fmt.Errorf("write training data: %w", err)
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "message CSV (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "training CSV, - for stdout")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
