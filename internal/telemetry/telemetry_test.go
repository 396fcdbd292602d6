package telemetry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mounikasaka1/hackai/internal/telemetry"
)

func TestRecordClassification(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())
	p.RecordClassification("rule", "Stalking", time.Millisecond)
	p.RecordClassification("rule", "Stalking", time.Millisecond)

	got := testutil.ToFloat64(p.Metrics.Classifications.WithLabelValues("rule", "Stalking"))
	assert.InDelta(t, 2.0, got, 0.0001)
}

func TestRecordSinkWrite(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())
	p.RecordSinkWrite("history", nil)
	p.RecordSinkWrite("history", errors.New("boom"))

	assert.InDelta(t, 1.0, testutil.ToFloat64(p.Metrics.SinkWrites.WithLabelValues("history", "ok")), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(p.Metrics.SinkWrites.WithLabelValues("history", "error")), 0.0001)
}

func TestNilProvider_IsNoop(t *testing.T) {
	t.Parallel()

	var p *telemetry.Provider
	p.RecordClassification("rule", "Friendly", time.Millisecond)
	p.RecordClassificationError("input")
	p.RecordTrustedSenderOverride("friendly")
	p.RecordRuleMatch(time.Microsecond)
	p.RecordBatch(10, time.Second)
	p.AddActiveWorkers(1)
	p.RecordTraining("ok", time.Second)
	p.RecordCacheLookup("hit")
	p.RecordSinkWrite("search", nil)

	ctx, span := p.StartSpan(context.Background(), "noop", attribute.String("k", "v"))
	span.End()
	assert.NotNil(t, ctx)
}

func TestHandler_ServesRegistry(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())
	p.RecordClassificationError("input")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hackai_classification_errors_total")
}
