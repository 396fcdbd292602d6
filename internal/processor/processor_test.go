package processor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mounikasaka1/hackai/internal/classifier"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/patterns"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

func ruleClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	c, err := classifier.New(classifier.Config{}, patterns.Default(), nil, nil, nil)
	require.NoError(t, err)
	return c
}

func TestProcess_PreservesOrder(t *testing.T) {
	t.Parallel()

	texts := []string{
		"where are you",
		"I've been outside your place",
		"",
		"see you at lunch",
		"I will kill you",
	}
	msgs := make([]domain.Message, len(texts))
	for i, text := range texts {
		msgs[i] = domain.NewMessage("", "Alex", text)
	}

	tp := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())
	bp := processor.NewBatchProcessor(ruleClassifier(t), 3, nil, tp)

	batch, err := bp.Process(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, batch.Items, len(msgs))
	assert.NotEmpty(t, batch.ID)

	want := []domain.Category{
		domain.CategoryLocationMonitoring,
		domain.CategoryStalking,
		domain.CategoryUnknown,
		domain.CategoryNormal,
		domain.CategoryDeathThreat,
	}
	for i, it := range batch.Items {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, texts[i], it.Message.Text)
		if want[i] == domain.CategoryUnknown {
			var inputErr *domain.InputError
			assert.ErrorAs(t, it.Err, &inputErr)
			continue
		}
		require.NoError(t, it.Err)
		assert.Equal(t, want[i], it.Result.IncidentType)
	}

	assert.Equal(t, 1, batch.Failed())
	assert.Len(t, batch.Records(), 4)
}

func TestProcess_Empty(t *testing.T) {
	t.Parallel()

	bp := processor.NewBatchProcessor(ruleClassifier(t), 0, nil, nil)
	batch, err := bp.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Items)
	assert.Equal(t, 8, bp.Concurrency())
}

type slowClassifier struct {
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (s *slowClassifier) Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error) {
	if s.calls.Add(1) == 2 {
		s.cancel()
	}
	time.Sleep(time.Millisecond)
	return &domain.ClassificationResult{IncidentType: domain.CategoryNormal, Severity: 1, PotentialCrime: domain.CrimeNo}, nil
}

func TestProcess_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc := &slowClassifier{cancel: cancel}

	msgs := make([]domain.Message, 100)
	for i := range msgs {
		msgs[i] = domain.NewMessage("", "Alex", fmt.Sprintf("message %d", i))
	}

	bp := processor.NewBatchProcessor(sc, 1, nil, nil)
	batch, err := bp.Process(ctx, msgs)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, batch.Items, len(msgs))
	assert.Less(t, int(sc.calls.Load()), len(msgs))
	assert.True(t, errors.Is(batch.Items[len(msgs)-1].Err, context.Canceled))
}

type cancelOnCall struct {
	calls  atomic.Int32
	on     int32
	cancel context.CancelFunc
}

func (c *cancelOnCall) Classify(context.Context, domain.Message) (*domain.ClassificationResult, error) {
	if c.calls.Add(1) == c.on {
		c.cancel()
	}
	return &domain.ClassificationResult{IncidentType: domain.CategoryNormal, Severity: 1, PotentialCrime: domain.CrimeNo}, nil
}

func TestProcess_ContextDoneAfterLastDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make([]domain.Message, 5)
	for i := range msgs {
		msgs[i] = domain.NewMessage("", "Alex", fmt.Sprintf("message %d", i))
	}

	bp := processor.NewBatchProcessor(&cancelOnCall{on: int32(len(msgs)), cancel: cancel}, 1, nil, nil)
	batch, err := bp.Process(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Failed())
	assert.Len(t, batch.Records(), len(msgs))
}

func TestInterrupted(t *testing.T) {
	t.Parallel()

	batch := &processor.Batch{}
	testCases := []struct {
		name  string
		batch *processor.Batch
		err   error
		want  bool
	}{
		{"deadline", batch, fmt.Errorf("batch x interrupted: %w", context.DeadlineExceeded), true},
		{"cancelled", batch, fmt.Errorf("batch x interrupted: %w", context.Canceled), true},
		{"no batch", nil, context.DeadlineExceeded, false},
		{"other error", batch, errors.New("boom"), false},
		{"no error", batch, nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, processor.Interrupted(tc.batch, tc.err))
		})
	}
}

func at(ts string) time.Time {
	t, _ := time.Parse(time.RFC3339, ts)
	return t
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	result := func(c domain.Category, e domain.Emotion, sev int) *domain.ClassificationResult {
		return &domain.ClassificationResult{
			IncidentType:   c,
			EmotionalState: e,
			Severity:       sev,
			PotentialCrime: domain.CrimeFlag(c, sev),
		}
	}
	item := func(sender, ts string, r *domain.ClassificationResult) processor.Item {
		return processor.Item{
			Message: domain.Message{SenderID: sender, Timestamp: at(ts), RawTimestamp: ts, Text: "x"},
			Result:  r,
		}
	}

	items := []processor.Item{
		item("Alex", "2024-01-01T10:00:00Z", result(domain.CategoryDeathThreat, domain.EmotionFearful, 5)),
		item("Alex", "2024-01-03T10:00:00Z", result(domain.CategoryStalking, domain.EmotionFearful, 4)),
		item("Sanya", "2024-01-02T10:00:00Z", result(domain.CategoryFriendly, domain.EmotionNeutral, 1)),
		item("Alex", "", result(domain.CategoryDeathThreat, domain.EmotionFearful, 5)),
		item("Jo", "2024-01-04T10:00:00Z", result(domain.CategoryLocationMonitoring, domain.EmotionConcerned, 2)),
		{Message: domain.Message{SenderID: "Jo"}, Err: errors.New("boom")},
	}

	s := processor.Summarize(items)
	assert.Equal(t, 5, s.TotalMessages)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.PotentialCrimes)
	assert.InDelta(t, 3.4, s.AverageSeverity, 1e-9)
	assert.Equal(t, 2, s.ByIncidentType["Death Threat"])
	assert.Equal(t, 3, s.ByEmotion["Fearful"])
	assert.Equal(t, 2, s.BySeverity[5])
	assert.Equal(t, map[string]int{"Alex": 3, "Sanya": 1, "Jo": 1}, s.BySender)

	require.Len(t, s.RecentHighSeverity, 3)
	assert.Equal(t, "Stalking", s.RecentHighSeverity[0].IncidentType)
	assert.Equal(t, "2024-01-01T10:00:00Z", s.RecentHighSeverity[1].TimeStamp)
	assert.Empty(t, s.RecentHighSeverity[2].TimeStamp)

	empty := processor.Summarize(nil)
	assert.Zero(t, empty.AverageSeverity)
	assert.Empty(t, empty.RecentHighSeverity)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	res := &domain.ClassificationResult{
		IncidentType:   domain.CategoryDeathThreat,
		EmotionalState: domain.EmotionFearful,
		Severity:       5,
		PotentialCrime: domain.CrimeYes,
	}
	s := processor.Summarize([]processor.Item{
		{Message: domain.NewMessage("2024-01-01 10:00:00", "Alex", "I will kill you"), Result: res},
	})

	var buf bytes.Buffer
	processor.RenderSummary(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "Batch summary")
	assert.Contains(t, out, "Death Threat")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, "I will kill you")
}
