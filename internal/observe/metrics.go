// Package observe provides application-wide observability primitives for
// Auricle: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Auricle metrics.
const meterName = "github.com/auricle-ai/auricle"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks per-utterance transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks full answer generation latency (first request to
	// final chunk).
	LLMDuration metric.Float64Histogram

	// MergeDuration tracks context merge latency.
	MergeDuration metric.Float64Histogram

	// --- Counters ---

	// FramesCaptured counts audio frames delivered by the capture device.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames dropped at the capture queue boundary.
	FramesDropped metric.Int64Counter

	// Utterances counts finalized utterances. Use with attributes:
	//   attribute.String("speaker", ...), attribute.String("outcome", "emitted"|"discarded")
	Utterances metric.Int64Counter

	// GateDecisions counts gate evaluations. Use with attributes:
	//   attribute.String("outcome", "pass"|"fail"), attribute.String("reason", ...)
	GateDecisions metric.Int64Counter

	// CooldownTransitions counts cooldown activations and releases. Use with:
	//   attribute.String("transition", "activate"|"release"), attribute.String("cause", ...)
	CooldownTransitions metric.Int64Counter

	// AnswersDispatched counts answer generations started.
	AnswersDispatched metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// OverlayClients tracks the number of connected overlay clients.
	OverlayClients metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversational latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("auricle.stt.duration",
		metric.WithDescription("Latency of per-utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("auricle.llm.duration",
		metric.WithDescription("Latency of full answer generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MergeDuration, err = m.Float64Histogram("auricle.merge.duration",
		metric.WithDescription("Latency of context merge."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("auricle.frames.captured",
		metric.WithDescription("Total audio frames delivered by the capture device."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("auricle.frames.dropped",
		metric.WithDescription("Total frames dropped at the capture queue boundary."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("auricle.utterances",
		metric.WithDescription("Total finalized utterances by speaker and outcome."),
	); err != nil {
		return nil, err
	}
	if met.GateDecisions, err = m.Int64Counter("auricle.gate.decisions",
		metric.WithDescription("Total gate evaluations by outcome and reason."),
	); err != nil {
		return nil, err
	}
	if met.CooldownTransitions, err = m.Int64Counter("auricle.cooldown.transitions",
		metric.WithDescription("Total cooldown activations and releases by cause."),
	); err != nil {
		return nil, err
	}
	if met.AnswersDispatched, err = m.Int64Counter("auricle.answers.dispatched",
		metric.WithDescription("Total answer generations started."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("auricle.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.OverlayClients, err = m.Int64UpDownCounter("auricle.overlay.clients",
		metric.WithDescription("Number of connected overlay clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records a finalized utterance with the standard attribute
// set.
func (m *Metrics) RecordUtterance(ctx context.Context, speaker, outcome string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("speaker", speaker),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordGateDecision records a gate evaluation outcome.
func (m *Metrics) RecordGateDecision(ctx context.Context, outcome, reason string) {
	m.GateDecisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("reason", reason),
		),
	)
}

// RecordCooldownTransition records a cooldown activation or release.
func (m *Metrics) RecordCooldownTransition(ctx context.Context, transition, cause string) {
	m.CooldownTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("transition", transition),
			attribute.String("cause", cause),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
