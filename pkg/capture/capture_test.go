package capture

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/session"
	"github.com/babelstream/babelstream/pkg/telemetry"
)

func newTestStage(t *testing.T) (*Stage, *queue.Queue[pipeline.UtteranceRecord]) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CaptureSampleRate = 16000
	cfg.FrameMs = 30
	cfg.VoiceThresholdMs = 30 // one frame to start
	cfg.SilenceThreshold = 30 // one frame to stop
	cfg.PreRollMs = 30

	d1 := queue.New[pipeline.UtteranceRecord](4)
	sess := session.New()
	tel := telemetry.New(sess.ID)

	st := New(cfg, sess, tel, nil, d1, "en")
	return st, d1
}

func loudFrame(n int) []int16 {
	f := make([]int16, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = 20000
		} else {
			f[i] = -20000
		}
	}
	return f
}

func quietFrame(n int) []int16 {
	return make([]int16, n)
}

func TestProcessBlock_VoiceThenSilenceProducesUtterance(t *testing.T) {
	st, d1 := newTestStage(t)
	frameSamples := st.cfg.CaptureSampleRate * st.cfg.FrameMs / 1000

	block := append(append([]int16{}, loudFrame(frameSamples)...), quietFrame(frameSamples)...)
	st.ProcessBlock(context.Background(), block, 0)

	rec, err := d1.TryPop(10 * time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, rec.PCM)
	require.NotEmpty(t, rec.WAV)
	require.Equal(t, 16000, rec.SampleRate)
	require.Equal(t, "en", rec.DeclaredSourceLang)
}

func TestProcessBlock_ZeroPadsTrailingPartialFrame(t *testing.T) {
	st, _ := newTestStage(t)
	frameSamples := st.cfg.CaptureSampleRate * st.cfg.FrameMs / 1000

	partial := loudFrame(frameSamples / 2)
	require.NotPanics(t, func() {
		st.ProcessBlock(context.Background(), partial, 0)
	})
}

func TestFlushInProgress_PushesPartialUtteranceOnce(t *testing.T) {
	st, d1 := newTestStage(t)
	frameSamples := st.cfg.CaptureSampleRate * st.cfg.FrameMs / 1000

	st.ProcessBlock(context.Background(), loudFrame(frameSamples), 0)
	require.True(t, st.recording)

	st.flushInProgress(context.Background())
	require.False(t, st.recording)

	rec, err := d1.TryPop(10 * time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, rec.PCM)

	// A second flush with nothing in progress must not push again.
	st.flushInProgress(context.Background())
	_, err = d1.TryPop(10 * time.Millisecond)
	require.ErrorIs(t, err, queue.ErrTimeout)
}

func TestPushAccumulator_DropsAndCountsTimeoutWhenD1Full(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxBlockingMs = 1
	d1 := queue.New[pipeline.UtteranceRecord](1)
	sess := session.New()
	tel := telemetry.New(sess.ID)
	st := New(cfg, sess, tel, nil, d1, "")

	require.NoError(t, d1.TryPush(pipeline.UtteranceRecord{}, time.Millisecond))

	st.accumulator = []int16{1, 2, 3}
	st.pushAccumulator(context.Background())

	snap := tel.Snapshot()
	require.Equal(t, int64(1), snap.QueueTimeouts)
}

// speechWave produces a 200 Hz fundamental at roughly -8 dBFS, well
// above the energy detector's floor.
func speechWave(rate, durMs int) []int16 {
	n := rate * durMs / 1000
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(12000 * math.Sin(2*math.Pi*200*float64(i)/float64(rate)))
	}
	return out
}

func newDefaultStage(t *testing.T) (*Stage, *queue.Queue[pipeline.UtteranceRecord], *telemetry.Telemetry) {
	t.Helper()
	cfg := config.DefaultConfig()
	d1 := queue.New[pipeline.UtteranceRecord](8)
	sess := session.New()
	tel := telemetry.New(sess.ID)
	return New(cfg, sess, tel, nil, d1, "en"), d1, tel
}

func drainAll(d1 *queue.Queue[pipeline.UtteranceRecord]) []pipeline.UtteranceRecord {
	var recs []pipeline.UtteranceRecord
	for {
		rec, err := d1.TryPop(10 * time.Millisecond)
		if err != nil {
			return recs
		}
		recs = append(recs, rec)
	}
}

func TestProcessBlock_SpeechSilenceSpeechYieldsTwoUtterances(t *testing.T) {
	st, d1, _ := newDefaultStage(t)
	rate := st.cfg.CaptureSampleRate

	var signal []int16
	signal = append(signal, speechWave(rate, 1000)...)
	signal = append(signal, make([]int16, rate/2)...) // 0.5s silence
	signal = append(signal, speechWave(rate, 1000)...)

	st.ProcessBlock(context.Background(), signal, 0)
	st.flushInProgress(context.Background())

	recs := drainAll(d1)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.GreaterOrEqual(t, rec.Duration(), 500*time.Millisecond)
	}
}

func TestProcessBlock_ContinuousSpeechYieldsOneUtterance(t *testing.T) {
	st, d1, _ := newDefaultStage(t)

	st.ProcessBlock(context.Background(), speechWave(st.cfg.CaptureSampleRate, 3000), 0)
	st.flushInProgress(context.Background())

	recs := drainAll(d1)
	require.Len(t, recs, 1)
	require.GreaterOrEqual(t, recs[0].Duration(), 2900*time.Millisecond)
}

func TestProcessBlock_SilenceOnlyProducesNothing(t *testing.T) {
	st, d1, tel := newDefaultStage(t)

	st.ProcessBlock(context.Background(), make([]int16, st.cfg.CaptureSampleRate*3), 0)
	st.flushInProgress(context.Background())

	require.Empty(t, drainAll(d1))
	require.Equal(t, int64(0), tel.Snapshot().RecordingsCreated)
}

func TestFloatToInt16_ClampsRange(t *testing.T) {
	out := floatToInt16([]float32{2, -2, 0, 0.5})
	require.Equal(t, int16(32767), out[0])
	require.Equal(t, int16(-32767), out[1])
	require.Equal(t, int16(0), out[2])
}
