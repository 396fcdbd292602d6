package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mounikasaka1/hackai/internal/bootstrap"
	"github.com/mounikasaka1/hackai/internal/database"
	"github.com/mounikasaka1/hackai/internal/dataset"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/storage"
)

type classifyOptions struct {
	input       string
	output      string
	mode        string
	index       bool
	noSummary   bool
	concurrency int
}

func newClassifyCommand(opts *globalOptions) *cobra.Command {
	co := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a CSV of messages",
		Long: `Reads a CSV with time_stamp, user_name and narrative_entry columns and writes
the classified records as CSV. A summary table is printed to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = rt.log.Sync() }()
			return runClassify(cmd, rt, co)
		},
	}

	cmd.Flags().StringVarP(&co.input, "input", "i", "", "input CSV (required)")
	cmd.Flags().StringVarP(&co.output, "output", "o", "-", "output CSV, - for stdout")
	cmd.Flags().StringVar(&co.mode, "mode", "", "classification mode: rules or model (overrides config)")
	cmd.Flags().BoolVar(&co.index, "index", false, "bulk-index results into Elasticsearch")
	cmd.Flags().BoolVar(&co.noSummary, "no-summary", false, "do not print the summary")
	cmd.Flags().IntVar(&co.concurrency, "concurrency", 0, "worker count (overrides service.concurrency)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runClassify(cmd *cobra.Command, rt *runtime, co *classifyOptions) error {
	ctx := cmd.Context()
	if co.mode != "" {
		rt.cfg.Classification.Mode = co.mode
	}
	if co.concurrency > 0 {
		rt.cfg.Service.Concurrency = co.concurrency
	}

	msgs, err := dataset.ReadMessagesFile(co.input)
	if err != nil {
		return err
	}

	comps, err := bootstrap.SetupClassifier(ctx, rt.cfg, rt.log, rt.tp)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	var indexer *storage.Indexer
	if co.index {
		if indexer = bootstrap.SetupElasticsearch(ctx, rt.cfg, rt.log, rt.tp); indexer == nil {
			return errors.New("--index requires a reachable elasticsearch.url")
		}
	}

	batchCtx := ctx
	if rt.cfg.Service.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, rt.cfg.Service.BatchTimeout)
		defer cancel()
	}

	bp := processor.NewBatchProcessor(comps.Service, rt.cfg.Service.Concurrency, rt.log, rt.tp)
	batch, err := bp.Process(batchCtx, msgs)
	interrupted := processor.Interrupted(batch, err)
	if err != nil && !interrupted {
		return err
	}

	// An interrupted batch still writes what finished before the error is
	// reported.
	emitCtx := ctx
	if interrupted {
		emitCtx = context.WithoutCancel(ctx)
	}
	if emitErr := emitBatch(emitCtx, cmd, rt, co, indexer, batch); emitErr != nil {
		return emitErr
	}
	if interrupted {
		return fmt.Errorf("wrote %d of %d records: %w", len(batch.Records()), len(msgs), err)
	}
	return nil
}

// emitBatch writes the classified records, stores and indexes them, and
// prints the summary.
func emitBatch(
	ctx context.Context,
	cmd *cobra.Command,
	rt *runtime,
	co *classifyOptions,
	indexer *storage.Indexer,
	batch *processor.Batch,
) error {
	for _, it := range batch.Items {
		if it.Err != nil {
			rt.log.Warn("Message not classified",
				logger.Int("row", it.Index+1),
				logger.String("sender", it.Message.SenderID),
				logger.Error(it.Err),
			)
		}
	}

	w, closeOut, err := openOutput(cmd, co.output)
	if err != nil {
		return err
	}
	if err = dataset.WriteRecords(w, batch.Records()); err != nil {
		_ = closeOut()
		return fmt.Errorf("write records: %w", err)
	}
	if err = closeOut(); err != nil {
		return err
	}

	if err = storeHistory(ctx, rt, batch); err != nil {
		return err
	}
	if indexer != nil {
		if err = indexer.BulkIndex(ctx, storage.BatchDocuments(batch)); err != nil {
			return fmt.Errorf("index batch: %w", err)
		}
		rt.log.Info("Batch indexed",
			logger.String("batch_id", batch.ID),
			logger.String("index", indexer.IndexName()),
		)
	}

	if !co.noSummary {
		processor.RenderSummary(cmd.ErrOrStderr(), processor.Summarize(batch.Items))
	}
	return nil
}

// storeHistory writes the batch to the history database when enabled.
func storeHistory(ctx context.Context, rt *runtime, batch *processor.Batch) error {
	db, err := bootstrap.SetupDatabase(ctx, rt.cfg, rt.log)
	if err != nil || db == nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entries := make([]*database.HistoryEntry, 0, len(batch.Items))
	for _, it := range batch.Items {
		if it.Err == nil && it.Result != nil {
			entries = append(entries, database.NewHistoryEntry(batch.ID, it.Message, it.Result))
		}
	}
	if err = db.History.CreateBatch(ctx, entries); err != nil {
		return fmt.Errorf("store history: %w", err)
	}
	return nil
}
