// Package telemetry exposes Prometheus metrics and an OpenTelemetry tracer
// for the classification engine. A nil *Provider is valid and records nothing.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "hackai"

// Metrics holds every collector the service registers.
type Metrics struct {
	// Classification
	Classifications        *prometheus.CounterVec
	ClassificationErrors   *prometheus.CounterVec
	ClassificationDuration *prometheus.HistogramVec
	TrustedSenderOverrides *prometheus.CounterVec

	// Rule engine
	RuleMatchDuration prometheus.Histogram

	// Batch
	BatchSize     prometheus.Histogram
	BatchDuration prometheus.Histogram
	ActiveWorkers prometheus.Gauge

	// Training
	TrainingRuns     *prometheus.CounterVec
	TrainingDuration prometheus.Histogram

	// Cache and sinks
	CacheLookups *prometheus.CounterVec
	SinkWrites   *prometheus.CounterVec
}

// Provider bundles the tracer and metrics.
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewProvider registers metrics on the default Prometheus registry.
// Call it once per process.
func NewProvider() *Provider {
	return newProvider(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, otel.Tracer(serviceName))
}

// NewProviderWithRegistry registers metrics on reg. Used by tests so that each
// test gets its own registry.
func NewProviderWithRegistry(reg *prometheus.Registry) *Provider {
	return newProvider(reg, reg, noop.NewTracerProvider().Tracer(serviceName))
}

func newProvider(reg prometheus.Registerer, g prometheus.Gatherer, tracer trace.Tracer) *Provider {
	factory := promauto.With(reg)
	m := &Metrics{}
	initClassificationMetrics(factory, m)
	initBatchMetrics(factory, m)
	initTrainingMetrics(factory, m)
	initSinkMetrics(factory, m)

	return &Provider{Tracer: tracer, Metrics: m, gatherer: g}
}

// Handler serves the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	if p == nil || p.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func initClassificationMetrics(f promauto.Factory, m *Metrics) {
	m.Classifications = f.NewCounterVec(prometheus.CounterOpts{
		Name: "hackai_classifications_total",
		Help: "Messages classified, by source backend and incident type",
	}, []string{"source", "incident_type"})

	m.ClassificationErrors = f.NewCounterVec(prometheus.CounterOpts{
		Name: "hackai_classification_errors_total",
		Help: "Classification failures by error kind",
	}, []string{"kind"})

	m.ClassificationDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hackai_classification_duration_seconds",
		Help:    "Time to classify one message",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"source"})

	m.TrustedSenderOverrides = f.NewCounterVec(prometheus.CounterOpts{
		Name: "hackai_trusted_sender_overrides_total",
		Help: "Times the trusted-sender override short-circuited the rule cascade",
	}, []string{"outcome"})

	m.RuleMatchDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "hackai_rule_match_duration_seconds",
		Help:    "Time spent in the Aho-Corasick rule cascade",
		Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
	})
}

func initBatchMetrics(f promauto.Factory, m *Metrics) {
	m.BatchSize = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "hackai_batch_size",
		Help:    "Messages per batch",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
	})

	m.BatchDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "hackai_batch_duration_seconds",
		Help:    "Wall time of a batch run",
		Buckets: prometheus.DefBuckets,
	})

	m.ActiveWorkers = f.NewGauge(prometheus.GaugeOpts{
		Name: "hackai_active_workers",
		Help: "Batch workers currently running",
	})
}

func initTrainingMetrics(f promauto.Factory, m *Metrics) {
	m.TrainingRuns = f.NewCounterVec(prometheus.CounterOpts{
		Name: "hackai_training_runs_total",
		Help: "Training runs by outcome",
	}, []string{"status"})

	m.TrainingDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "hackai_training_duration_seconds",
		Help:    "Wall time of a training run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
}

func initSinkMetrics(f promauto.Factory, m *Metrics) {
	m.CacheLookups = f.NewCounterVec(prometheus.CounterOpts{
		Name: "hackai_cache_lookups_total",
		Help: "Result cache lookups by outcome (hit, miss, error)",
	}, []string{"outcome"})

	m.SinkWrites = f.NewCounterVec(prometheus.CounterOpts{
		Name: "hackai_sink_writes_total",
		Help: "Writes to history and search sinks by sink and status",
	}, []string{"sink", "status"})
}

// RecordClassification counts a successful classification.
func (p *Provider) RecordClassification(source, incidentType string, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.Classifications.WithLabelValues(source, incidentType).Inc()
	p.Metrics.ClassificationDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordClassificationError counts a failed classification.
func (p *Provider) RecordClassificationError(kind string) {
	if p == nil {
		return
	}
	p.Metrics.ClassificationErrors.WithLabelValues(kind).Inc()
}

// RecordTrustedSenderOverride counts an override firing.
func (p *Provider) RecordTrustedSenderOverride(outcome string) {
	if p == nil {
		return
	}
	p.Metrics.TrustedSenderOverrides.WithLabelValues(outcome).Inc()
}

// RecordRuleMatch observes rule cascade latency.
func (p *Provider) RecordRuleMatch(duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.RuleMatchDuration.Observe(duration.Seconds())
}

// RecordBatch observes a finished batch.
func (p *Provider) RecordBatch(size int, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.BatchSize.Observe(float64(size))
	p.Metrics.BatchDuration.Observe(duration.Seconds())
}

// AddActiveWorkers moves the active worker gauge by delta.
func (p *Provider) AddActiveWorkers(delta int) {
	if p == nil {
		return
	}
	p.Metrics.ActiveWorkers.Add(float64(delta))
}

// RecordTraining counts a training run.
func (p *Provider) RecordTraining(status string, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.TrainingRuns.WithLabelValues(status).Inc()
	p.Metrics.TrainingDuration.Observe(duration.Seconds())
}

// RecordCacheLookup counts a cache lookup outcome.
func (p *Provider) RecordCacheLookup(outcome string) {
	if p == nil {
		return
	}
	p.Metrics.CacheLookups.WithLabelValues(outcome).Inc()
}

// RecordSinkWrite counts a write to a history or search sink.
func (p *Provider) RecordSinkWrite(sink string, err error) {
	if p == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.Metrics.SinkWrites.WithLabelValues(sink, status).Inc()
}

// StartSpan starts a span; the caller ends it. A nil provider returns a
// no-op span.
//
//nolint:spancheck // caller ends the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil || p.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
