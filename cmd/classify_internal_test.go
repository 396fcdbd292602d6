package cmd //nolint:testpackage // emitBatch is exercised with a batch cut short by its time budget

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mounikasaka1/hackai/internal/classifier"
	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/patterns"
	"github.com/mounikasaka1/hackai/internal/processor"
)

// heldUntilDeadline blocks every call until ctx is done, then classifies.
type heldUntilDeadline struct {
	next *classifier.Classifier
}

func (h heldUntilDeadline) Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error) {
	<-ctx.Done()
	return h.next.Classify(context.Background(), msg)
}

func TestEmitBatch_PartialBatch(t *testing.T) {
	t.Parallel()

	c, err := classifier.New(classifier.Config{}, patterns.Default(), nil, nil, nil)
	require.NoError(t, err)

	msgs := []domain.Message{
		domain.NewMessage("2024-03-01 10:00:00", "Alex", "I will kill you tonight"),
		domain.NewMessage("2024-03-01 10:05:00", "Alex", "where are you right now"),
		domain.NewMessage("2024-03-01 10:10:00", "Jo", "see you at lunch"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	batch, procErr := processor.NewBatchProcessor(heldUntilDeadline{next: c}, 1, nil, nil).Process(ctx, msgs)
	require.ErrorIs(t, procErr, context.DeadlineExceeded)
	require.True(t, processor.Interrupted(batch, procErr))

	out := filepath.Join(t.TempDir(), "partial.csv")
	var stderr bytes.Buffer
	command := &cobra.Command{}
	command.SetErr(&stderr)

	rt := &runtime{cfg: config.Default(), log: logger.NewNop()}
	require.NoError(t, emitBatch(context.Background(), command, rt, &classifyOptions{output: out}, nil, batch))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	records := batch.Records()
	require.NotEmpty(t, records)
	assert.Less(t, len(records), len(msgs))
	require.Len(t, rows, len(records)+1)
	assert.Equal(t, "Death Threat", rows[1][3])
	assert.Contains(t, stderr.String(), "Batch summary")
}
