package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewWavBuffer(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	sampleRate := 44100
	wav := NewWavBuffer(pcm, sampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}

	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("Expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestDecode_RoundTripBitExact(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768, 1234, -4321}
	wav := Encode(pcm, 16000)

	out, rate, err := DecodeToInt16(wav)
	require.NoError(t, err)
	require.Equal(t, 16000, rate)
	require.Equal(t, pcm, out)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a wav file"))
	require.ErrorIs(t, err, ErrNotWav)
}

func TestDecode_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 2000).Draw(rt, "n")
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(rapid.IntRange(-32768, 32767).Draw(rt, "sample"))
		}
		rate := rapid.SampledFrom([]int{8000, 16000, 44100, 48000}).Draw(rt, "rate")

		wav := Encode(samples, rate)
		out, gotRate, err := DecodeToInt16(wav)
		require.NoError(rt, err)
		require.Equal(rt, rate, gotRate)
		require.Equal(rt, samples, out)
	})
}
