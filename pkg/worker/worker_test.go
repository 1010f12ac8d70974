package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/babelstream/babelstream/pkg/audio"
	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/engines"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/session"
	"github.com/babelstream/babelstream/pkg/telemetry"
)

type fakeASR struct {
	text string
	lang string
	err  error
}

func (f *fakeASR) Transcribe(ctx context.Context, wav []byte, hint string) (engines.ASRResult, error) {
	if f.err != nil {
		return engines.ASRResult{}, f.err
	}
	return engines.ASRResult{Text: f.text, DetectedLanguage: f.lang}, nil
}
func (f *fakeASR) Name() string { return "fake-asr" }

type fakeTranslator struct {
	out string
	err error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}
func (f *fakeTranslator) Name() string { return "fake-translate" }

type fakeTTS struct {
	pcm     []int16
	rate    int
	err     error
	gotText string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return audio.Encode(f.pcm, f.rate), nil
}
func (f *fakeTTS) Name() string { return "fake-tts" }

func newTestStage(t *testing.T, asr engines.ASREngine, tr engines.Translator, tts engines.TTSEngine) (*Stage, *queue.Queue[pipeline.UtteranceRecord], *queue.Queue[pipeline.SynthesizedAudio]) {
	t.Helper()
	cfg := config.DefaultConfig()
	d1 := queue.New[pipeline.UtteranceRecord](4)
	d2 := queue.New[pipeline.SynthesizedAudio](4)
	sess := session.New()
	tel := telemetry.New(sess.ID)
	st := New(cfg, sess, tel, nil, d1, d2, asr, tr, tts, nil, "es", "default")
	return st, d1, d2
}

func TestProcessUtterance_HappyPath(t *testing.T) {
	st, _, d2 := newTestStage(t,
		&fakeASR{text: "hello world", lang: "en"},
		&fakeTranslator{out: "hola mundo"},
		&fakeTTS{pcm: []int16{100, -100, 200}, rate: 16000},
	)

	rec := pipeline.UtteranceRecord{ID: uuid.New(), SampleRate: 16000, PCM: make([]int16, 16000)}
	st.processUtterance(context.Background(), rec)

	out, err := d2.TryPop(100 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, rec.ID, out.UtteranceID)
	require.NotEmpty(t, out.PCM)
	require.Equal(t, st.cfg.PlaybackSampleRate, out.SampleRate)
}

func TestProcessUtterance_ASRFailureAbandonsUtterance(t *testing.T) {
	st, _, d2 := newTestStage(t,
		&fakeASR{err: errors.New("asr down")},
		&fakeTranslator{out: "x"},
		&fakeTTS{pcm: []int16{1}, rate: 16000},
	)

	rec := pipeline.UtteranceRecord{ID: uuid.New(), SampleRate: 16000, PCM: make([]int16, 16000)}
	st.processUtterance(context.Background(), rec)

	_, err := d2.TryPop(10 * time.Millisecond)
	require.ErrorIs(t, err, queue.ErrTimeout)
}

func TestProcessUtterance_EmptyTranscriptAbandonsUtterance(t *testing.T) {
	st, _, d2 := newTestStage(t,
		&fakeASR{text: "   "},
		&fakeTranslator{out: "x"},
		&fakeTTS{pcm: []int16{1}, rate: 16000},
	)

	rec := pipeline.UtteranceRecord{ID: uuid.New(), SampleRate: 16000, PCM: make([]int16, 16000)}
	st.processUtterance(context.Background(), rec)

	_, err := d2.TryPop(10 * time.Millisecond)
	require.ErrorIs(t, err, queue.ErrTimeout)
}

func TestProcessUtterance_TranslationErrorFallsBackToSourceText(t *testing.T) {
	st, _, d2 := newTestStage(t,
		&fakeASR{text: "hello"},
		&fakeTranslator{err: errors.New("mt down")},
		&fakeTTS{pcm: []int16{1, 2, 3}, rate: 16000},
	)

	rec := pipeline.UtteranceRecord{ID: uuid.New(), SampleRate: 16000, PCM: make([]int16, 16000)}
	st.processUtterance(context.Background(), rec)

	out, err := d2.TryPop(100 * time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, out.PCM)
}

func TestProcessUtterance_TTSFailureDropsUtteranceWithoutPanicking(t *testing.T) {
	st, _, d2 := newTestStage(t,
		&fakeASR{text: "hello"},
		&fakeTranslator{out: "hola"},
		&fakeTTS{err: errors.New("tts down")},
	)

	rec := pipeline.UtteranceRecord{ID: uuid.New(), SampleRate: 16000, PCM: make([]int16, 16000)}
	require.NotPanics(t, func() { st.processUtterance(context.Background(), rec) })

	_, err := d2.TryPop(10 * time.Millisecond)
	require.ErrorIs(t, err, queue.ErrTimeout)
}

func TestRunTranslation_SkipsMTWhenSourceEqualsDestination(t *testing.T) {
	tts := &fakeTTS{pcm: []int16{1, 2, 3}, rate: 16000}
	st, _, d2 := newTestStage(t,
		&fakeASR{text: "hello", lang: "en"},
		&fakeTranslator{out: "should not be used"},
		tts,
	)
	st.targetLang = "en"

	rec := pipeline.UtteranceRecord{ID: uuid.New(), SampleRate: 16000, PCM: make([]int16, 16000), DeclaredSourceLang: "en"}
	st.processUtterance(context.Background(), rec)

	out, err := d2.TryPop(100 * time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, out.PCM)
	require.Equal(t, "hello", tts.gotText)
}

func TestTranscribeChunked_ConcatenatesAcrossLongAudio(t *testing.T) {
	st, _, _ := newTestStage(t,
		&fakeASR{text: "chunk", lang: "en"},
		&fakeTranslator{out: "x"},
		&fakeTTS{pcm: []int16{1}, rate: 16000},
	)
	st.cfg.LongAudioThresholdSec = 1
	st.cfg.ChunkOverlapSec = 0

	rec := pipeline.UtteranceRecord{SampleRate: 16000, PCM: make([]int16, 16000*3)}
	text, lang, err := st.transcribeChunked(context.Background(), rec, "")
	require.NoError(t, err)
	require.Equal(t, "en", lang)
	require.Contains(t, text, "chunk")
}
