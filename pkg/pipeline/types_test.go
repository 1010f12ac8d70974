package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUtteranceRecord_DurationMatchesSampleCountOverRate(t *testing.T) {
	u := UtteranceRecord{PCM: make([]int16, 16000), SampleRate: 16000}
	require.InDelta(t, float64(1*1_000_000_000), float64(u.Duration()), float64(1_000_000_000)/16000)
}

func TestUtteranceRecord_ZeroSampleRateIsZeroDuration(t *testing.T) {
	u := UtteranceRecord{PCM: make([]int16, 100)}
	require.Equal(t, int64(0), int64(u.Duration()))
}

func TestPhaseOutcome_OkAndFail(t *testing.T) {
	ok := Ok("hello")
	require.Equal(t, "hello", ok.Value)
	require.NoError(t, ok.Err)

	want := errors.New("boom")
	f := Fail[string](want)
	require.Equal(t, "", f.Value)
	require.ErrorIs(t, f.Err, want)
}

func TestTranslationJob_AddErrorAccumulates(t *testing.T) {
	var j TranslationJob
	j.AddError("asr failed")
	j.AddError("mt fallback used")
	require.Equal(t, []string{"asr failed", "mt fallback used"}, j.Errors)
}
