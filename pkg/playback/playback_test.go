package playback

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/session"
)

func newTestStage(t *testing.T) (*Stage, *queue.Queue[pipeline.SynthesizedAudio]) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PlaybackSubChunk = 4
	cfg.JitterDepthChunks = 1
	cfg.JitterMaxChunks = 8

	d2 := queue.New[pipeline.SynthesizedAudio](4)
	sess := session.New()
	return New(cfg, sess, nil, d2), d2
}

func TestEnqueue_SplitsIntoSubChunks(t *testing.T) {
	st, _ := newTestStage(t)
	st.Enqueue(pipeline.SynthesizedAudio{UtteranceID: uuid.New(), PCM: make([]int16, 10)})
	require.Equal(t, 3, st.jb.Len()) // 4 + 4 + 2
}

func TestFill_ProducesSamplesOnceJitterPrimed(t *testing.T) {
	st, _ := newTestStage(t)
	st.Enqueue(pipeline.SynthesizedAudio{UtteranceID: uuid.New(), PCM: []int16{1, 2, 3, 4}})

	out := make([]float32, 4)
	n := st.Fill(out)
	require.Equal(t, 4, n)
	require.NotZero(t, out[0])
}

func TestFill_ReturnsZeroWhenBufferNotYetPrimed(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.JitterDepthChunks = 3
	cfg.JitterMaxChunks = 12
	d2 := queue.New[pipeline.SynthesizedAudio](4)
	sess := session.New()
	st := New(cfg, sess, nil, d2)

	st.Enqueue(pipeline.SynthesizedAudio{UtteranceID: uuid.New(), PCM: []int16{1, 2, 3, 4}})

	out := make([]float32, 4)
	n := st.Fill(out)
	require.Equal(t, 0, n)
}

func TestFill_CarriesResidualAcrossCallbacks(t *testing.T) {
	st, _ := newTestStage(t)
	st.Enqueue(pipeline.SynthesizedAudio{UtteranceID: uuid.New(), PCM: []int16{1, 2, 3, 4, 5, 6}})

	first := make([]float32, 4)
	n1 := st.Fill(first)
	require.Equal(t, 4, n1)

	second := make([]float32, 4)
	n2 := st.Fill(second)
	require.Equal(t, 2, n2)
}

func TestDrainOnce_MovesD2PayloadIntoJitterBuffer(t *testing.T) {
	st, d2 := newTestStage(t)
	require.NoError(t, d2.TryPush(pipeline.SynthesizedAudio{UtteranceID: uuid.New(), PCM: []int16{1, 2, 3, 4}}, time.Millisecond))

	ok := st.DrainOnce(context.Background(), 50*time.Millisecond)
	require.True(t, ok)
	require.Equal(t, 1, st.jb.Len())
}

func TestClose_FlushesJitterBuffer(t *testing.T) {
	st, _ := newTestStage(t)
	st.Enqueue(pipeline.SynthesizedAudio{UtteranceID: uuid.New(), PCM: []int16{1, 2, 3, 4}})
	st.Close()
	require.Equal(t, 0, st.jb.Len())
}
