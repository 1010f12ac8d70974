package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToFloat32_RoundTripsWithWriteFloat32ToBytes(t *testing.T) {
	samples := []float32{0, 1, -1, 0.5, -0.5, 0.999999}
	buf := make([]byte, len(samples)*4)
	writeFloat32ToBytes(buf, samples)

	out := bytesToFloat32(buf)
	require.Len(t, out, len(samples))
	for i := range samples {
		require.InDelta(t, float64(samples[i]), float64(out[i]), 1e-6)
	}
}

func TestBytesToFloat32_EmptyInput(t *testing.T) {
	require.Empty(t, bytesToFloat32(nil))
}

func TestWriteFloat32ToBytes_PreservesBitPattern(t *testing.T) {
	buf := make([]byte, 4)
	writeFloat32ToBytes(buf, []float32{float32(math.Pi)})
	out := bytesToFloat32(buf)
	require.Equal(t, float32(math.Pi), out[0])
}
