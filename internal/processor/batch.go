// Package processor classifies batches of messages on a worker pool and
// summarises the results.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

const defaultConcurrency = 8

// MessageClassifier classifies a single message.
type MessageClassifier interface {
	Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error)
}

// Item is one message of a batch and its outcome.
type Item struct {
	Index   int
	Message domain.Message
	Result  *domain.ClassificationResult
	Err     error
}

// Batch is the ordered outcome of Process.
type Batch struct {
	ID       string
	Items    []Item
	Duration time.Duration
}

// Records returns the output records of the successfully classified items in
// input order.
func (b *Batch) Records() []domain.Record {
	out := make([]domain.Record, 0, len(b.Items))
	for _, it := range b.Items {
		if it.Err == nil && it.Result != nil {
			out = append(out, domain.ToRecord(it.Message, it.Result))
		}
	}
	return out
}

// Interrupted reports whether err is the time budget or cancellation error
// returned by Process with a usable partial batch.
func Interrupted(batch *Batch, err error) bool {
	return batch != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}

// Failed counts items that produced an error.
func (b *Batch) Failed() int {
	n := 0
	for _, it := range b.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// BatchProcessor fans classification out across a fixed worker pool.
type BatchProcessor struct {
	classifier  MessageClassifier
	concurrency int
	logger      logger.Logger
	telemetry   *telemetry.Provider
}

// NewBatchProcessor creates a processor. Non-positive concurrency uses the
// default.
func NewBatchProcessor(c MessageClassifier, concurrency int, log logger.Logger, tp *telemetry.Provider) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchProcessor{classifier: c, concurrency: concurrency, logger: log, telemetry: tp}
}

// Concurrency reports the worker count.
func (b *BatchProcessor) Concurrency() int { return b.concurrency }

// Process classifies msgs. Each worker writes only its item's slot, so the
// output order matches the input. Once ctx is done no further items are
// dispatched; those items carry ctx.Err() and Process returns it wrapped
// alongside the partial batch. Callers check Interrupted to keep the
// completed items.
func (b *BatchProcessor) Process(ctx context.Context, msgs []domain.Message) (*Batch, error) {
	batch := &Batch{ID: uuid.NewString(), Items: make([]Item, len(msgs))}
	if len(msgs) == 0 {
		return batch, nil
	}

	ctx, span := b.telemetry.StartSpan(ctx, "processor.Process",
		attribute.Int("batch_size", len(msgs)),
		attribute.String("batch_id", batch.ID))
	defer span.End()

	workers := min(b.concurrency, len(msgs))
	b.logger.Info("Starting batch processing",
		logger.String("batch_id", batch.ID),
		logger.Int("batch_size", len(msgs)),
		logger.Int("concurrency", workers),
	)

	start := time.Now()
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go b.worker(ctx, msgs, batch.Items, jobs, &wg)
	}

	dispatched := 0
dispatch:
	for i := range msgs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	// Items already handed to a worker complete; only undispatched ones are
	// charged to the context.
	var err error
	if dispatched < len(msgs) {
		err = ctx.Err()
		for i := dispatched; i < len(msgs); i++ {
			batch.Items[i] = Item{Index: i, Message: msgs[i], Err: err}
		}
	}

	batch.Duration = time.Since(start)
	b.telemetry.RecordBatch(len(msgs), batch.Duration)

	failed := batch.Failed()
	b.logger.Info("Batch processing complete",
		logger.String("batch_id", batch.ID),
		logger.Int("total", len(msgs)),
		logger.Int("success", len(msgs)-failed),
		logger.Int("errors", failed),
		logger.Int64("duration_ms", batch.Duration.Milliseconds()),
	)

	if err != nil {
		span.RecordError(err)
		return batch, fmt.Errorf("batch %s interrupted after %d of %d messages: %w", batch.ID, dispatched, len(msgs), err)
	}
	return batch, nil
}

func (b *BatchProcessor) worker(
	ctx context.Context,
	msgs []domain.Message,
	items []Item,
	jobs <-chan int,
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	b.telemetry.AddActiveWorkers(1)
	defer b.telemetry.AddActiveWorkers(-1)

	for i := range jobs {
		items[i] = b.processItem(ctx, i, msgs[i])
	}
}

func (b *BatchProcessor) processItem(ctx context.Context, i int, msg domain.Message) Item {
	item := Item{Index: i, Message: msg}

	result, err := b.classifier.Classify(ctx, msg)
	if err != nil {
		item.Err = fmt.Errorf("classify row %d: %w", i, err)
		b.logger.Warn("Failed to classify message",
			logger.Int("index", i),
			logger.String("sender", msg.SenderID),
			logger.Error(err),
		)
		return item
	}

	item.Result = result
	return item
}
