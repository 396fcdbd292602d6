package training_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mounikasaka1/hackai/internal/dataset"
	"github.com/mounikasaka1/hackai/internal/features"
	"github.com/mounikasaka1/hackai/internal/model"
	"github.com/mounikasaka1/hackai/internal/telemetry"
	"github.com/mounikasaka1/hackai/internal/training"
)

func corpus() *dataset.TrainingSet {
	rows := []struct {
		text, incident, emotion string
		severity                int
		crime                   string
	}{
		{"I will kill you tonight", "Death Threat", "Fearful", 5, "Y"},
		{"you will die for this", "Death Threat", "Fearful", 5, "Y"},
		{"kill you when I find you", "Death Threat", "Fearful", 5, "Y"},
		{"I will hurt you badly", "Death Threat", "Fearful", 5, "Y"},
		{"I am going to kill you", "Death Threat", "Fearful", 5, "Y"},
		{"lunch tomorrow at noon", "Normal Communication", "Neutral", 1, "N"},
		{"see you at lunch", "Normal Communication", "Neutral", 1, "N"},
		{"movie night tomorrow", "Normal Communication", "Neutral", 1, "N"},
		{"lunch sounds good", "Normal Communication", "Neutral", 1, "N"},
		{"tomorrow lunch works", "Normal Communication", "Neutral", 1, "N"},
	}

	set := &dataset.TrainingSet{}
	for _, r := range rows {
		set.Texts = append(set.Texts, r.text)
		set.Labels.IncidentType = append(set.Labels.IncidentType, r.incident)
		set.Labels.EmotionalState = append(set.Labels.EmotionalState, r.emotion)
		set.Labels.Severity = append(set.Labels.Severity, r.severity)
		set.Labels.PotentialCrime = append(set.Labels.PotentialCrime, r.crime)
	}
	return set
}

func options(dir string) training.Options {
	return training.Options{
		Features:  features.Options{NGramMin: 1, NGramMax: 1, MinDF: 1, MaxDF: 1},
		Forest:    model.Params{Trees: 10, MaxDepth: 8, MinSamplesSplit: 2, Seed: 42},
		TestSize:  0.2,
		OutputDir: dir,
	}
}

func TestTrain_SavesArtifact(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	tp := telemetry.NewProviderWithRegistry(reg)
	trainer := training.NewTrainer(nil, tp)

	dir := filepath.Join(t.TempDir(), "artifact")
	art, report, err := trainer.Train(context.Background(), corpus(), options(dir))
	require.NoError(t, err)

	assert.Equal(t, 10, report.Examples)
	assert.Equal(t, 8, report.TrainSize)
	assert.Equal(t, 2, report.TestSize)
	assert.Positive(t, report.NumFeatures)
	assert.Len(t, report.Accuracy, 4)
	assert.Equal(t, art.Version, report.Version)

	loaded, err := model.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, art.Version, loaded.Version)

	assert.InDelta(t, 1.0, testutil.ToFloat64(tp.Metrics.TrainingRuns.WithLabelValues("success")), 1e-9)

	var buf bytes.Buffer
	training.RenderReport(&buf, report)
	assert.Contains(t, buf.String(), "incident_type accuracy")
	assert.Contains(t, buf.String(), dir)
}

func TestTrain_Serialised(t *testing.T) {
	t.Parallel()

	trainer := training.NewTrainer(nil, nil)
	var wg sync.WaitGroup
	versions := make([]string, 3)
	for i := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, report, err := trainer.Train(context.Background(), corpus(), options(""))
			if assert.NoError(t, err) {
				versions[i] = report.Version
			}
		}()
	}
	wg.Wait()

	assert.NotEqual(t, versions[0], versions[1])
	assert.NotEqual(t, versions[1], versions[2])
}

func TestTrain_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	opts := options("")
	opts.Features.MinDF = 7
	_, _, err := training.NewTrainer(nil, nil).Train(context.Background(), corpus(), opts)
	require.ErrorIs(t, err, features.ErrEmptyVocabulary)
}
