// Package pcm holds the explicit format-conversion boundary operations
// between the float32 samples audio devices hand us and the 16-bit
// signed integer samples the rest of the pipeline works with.
package pcm

import "math"

// Frame is a time-tagged block of 16-bit signed linear PCM samples.
type Frame struct {
	SampleRate int
	Channels   int
	// CaptureTimestampMs is the monotonic capture timestamp (milliseconds)
	// of the first sample in Samples.
	CaptureTimestampMs int64
	Samples            []int16
}

// FloatToInt16 converts device samples in [-1, 1] to 16-bit signed PCM.
// Values outside the range are clamped rather than wrapped.
func FloatToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		f := float64(s)
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		out[i] = int16(math.Round(f * 32767))
	}
	return out
}

// Int16ToFloat converts 16-bit signed PCM to float32 samples in [-1, 1].
func Int16ToFloat(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// BytesToInt16LE decodes little-endian 16-bit PCM bytes into samples.
func BytesToInt16LE(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

// Int16ToBytesLE encodes samples as little-endian 16-bit PCM bytes.
func Int16ToBytesLE(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		out[2*i] = byte(uint16(v))
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}

// NormalizePeak scales samples so the maximum absolute sample reaches
// full scale. If every sample is zero, the input is returned unchanged;
// the worker stage treats all-zero as silence.
func NormalizePeak(in []int16) []int16 {
	var max int32
	for _, s := range in {
		a := int32(s)
		if a < 0 {
			a = -a
		}
		if a > max {
			max = a
		}
	}
	if max == 0 {
		return in
	}
	out := make([]int16, len(in))
	scale := 32767.0 / float64(max)
	for i, s := range in {
		out[i] = int16(math.Round(float64(s) * scale))
	}
	return out
}

// Resample performs linear-interpolation resampling from srcRate to
// dstRate. Adequate for speech-band PCM; not a replacement for a
// windowed-sinc resampler but keeps the pipeline free of a cgo
// dependency for a boundary operation that only needs to be "good
// enough" between model-provided rates and the playback rate.
func Resample(in []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}
	outLen := int(float64(len(in)) * float64(dstRate) / float64(srcRate))
	out := make([]int16, outLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(in) {
			out[i] = int16(float64(in[idx])*(1-frac) + float64(in[idx+1])*frac)
		} else {
			out[i] = in[len(in)-1]
		}
	}
	return out
}

// StereoToMono averages interleaved stereo samples down to mono.
func StereoToMono(in []int16) []int16 {
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16((int32(in[2*i]) + int32(in[2*i+1])) / 2)
	}
	return out
}
