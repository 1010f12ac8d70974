package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stretchr/testify/require"
)

func newTestOTelSink(t *testing.T) (*OTelSink, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	s, err := NewOTelSink(mp)
	require.NoError(t, err)
	return s, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewOTelSink_CreatesWithoutError(t *testing.T) {
	s, _ := newTestOTelSink(t)
	require.NotNil(t, s)
}

func TestOTelSink_RecordsASRLatencyHistogram(t *testing.T) {
	s, reader := newTestOTelSink(t)
	s.Record(context.Background(), Record{Step: StepASR, LatencyMs: 500, Language: "en"})

	rm := collect(t, reader)
	m := findMetric(rm, "babelstream.asr.duration")
	require.NotNil(t, m)
}

func TestOTelSink_CountsStepErrors(t *testing.T) {
	s, reader := newTestOTelSink(t)
	s.Record(context.Background(), Record{Step: StepTranslation, Errors: []string{"mt failed"}})

	rm := collect(t, reader)
	m := findMetric(rm, "babelstream.step.errors")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	require.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestOTelSink_RecordingCreatedIncrementsCounter(t *testing.T) {
	s, reader := newTestOTelSink(t)
	s.Record(context.Background(), Record{Step: StepCapture, Message: msgRecordingCreated})
	s.Record(context.Background(), Record{Step: StepCapture, Message: msgRecordingCreated})

	rm := collect(t, reader)
	m := findMetric(rm, "babelstream.recordings_created")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Equal(t, int64(2), sum.DataPoints[0].Value)
}
