package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName is the OTel instrumentation scope for this
// module's metrics.
const instrumentationName = "github.com/babelstream/babelstream"

// OTelSink records session telemetry as OpenTelemetry instruments:
// histograms for per-phase latency, counters for volume/error events,
// scraped via whatever MeterProvider reader the host wired up (a
// Prometheus exporter in the reference cmd/translator wiring).
type OTelSink struct {
	asrLatency   metric.Float64Histogram
	mtLatency    metric.Float64Histogram
	ttsLatency   metric.Float64Histogram
	e2eLatency   metric.Float64Histogram
	stepErrors   metric.Int64Counter
	recordings   metric.Int64Counter
	queueTimeout metric.Int64Counter
}

// latencyBuckets are voice-pipeline-scale boundaries (seconds).
var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewOTelSink creates an OTelSink backed by the given MeterProvider.
func NewOTelSink(mp metric.MeterProvider) (*OTelSink, error) {
	m := mp.Meter(instrumentationName)
	s := &OTelSink{}
	var err error

	if s.asrLatency, err = m.Float64Histogram("babelstream.asr.duration",
		metric.WithDescription("ASR transcription latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if s.mtLatency, err = m.Float64Histogram("babelstream.translation.duration",
		metric.WithDescription("Translation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if s.ttsLatency, err = m.Float64Histogram("babelstream.tts.duration",
		metric.WithDescription("Speech synthesis latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if s.e2eLatency, err = m.Float64Histogram("babelstream.e2e.duration",
		metric.WithDescription("End-to-end utterance processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if s.stepErrors, err = m.Int64Counter("babelstream.step.errors",
		metric.WithDescription("Total recoverable step errors by step kind."),
	); err != nil {
		return nil, err
	}
	if s.recordings, err = m.Int64Counter("babelstream.recordings_created",
		metric.WithDescription("Total utterances closed by the VAD segmenter."),
	); err != nil {
		return nil, err
	}
	if s.queueTimeout, err = m.Int64Counter("babelstream.queue_timeouts",
		metric.WithDescription("Total utterances dropped due to backpressure."),
	); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *OTelSink) Record(ctx context.Context, r Record) {
	attrs := metric.WithAttributes(
		attribute.String("step", string(r.Step)),
		attribute.String("language", r.Language),
	)

	switch r.Step {
	case StepASR:
		s.asrLatency.Record(ctx, r.LatencyMs/1000, attrs)
	case StepTranslation:
		s.mtLatency.Record(ctx, r.LatencyMs/1000, attrs)
	case StepSynthesis:
		s.ttsLatency.Record(ctx, r.LatencyMs/1000, attrs)
	case StepCapture:
		if r.Message == msgRecordingCreated {
			s.recordings.Add(ctx, 1, attrs)
		}
		if r.Message == msgQueueTimeout {
			s.queueTimeout.Add(ctx, 1, attrs)
		}
	}

	if len(r.Errors) > 0 {
		s.stepErrors.Add(ctx, 1, attrs)
	}
}

// Rollup records only the end-to-end latency gauge-equivalent; the
// monotonic counters (recordings, queue timeouts) are recorded as deltas
// via Record as they happen, not re-derived from the cumulative Snapshot
// here, to avoid double counting on every periodic rollup tick.
func (s *OTelSink) Rollup(ctx context.Context, snap Snapshot) {
	s.e2eLatency.Record(ctx, float64(snap.E2ELatencyMs)/1000)
}
