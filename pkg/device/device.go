// Package device wraps github.com/gen2brain/malgo input/output streams
// behind float-sample callback contracts. Capture and playback run at
// different sample rates (16 kHz mono in, 44.1 kHz mono out by default),
// so the package opens two independent malgo.Capture/malgo.Playback
// devices rather than one duplex stream.
package device

import (
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// CaptureCallback receives one block of float32 samples in [-1, 1] and
// the frame count the device delivered.
type CaptureCallback func(samples []float32, framesRead uint32)

// CaptureDevice owns one malgo capture stream.
type CaptureDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// supportedSampleRates are the capture rates the pipeline accepts.
var supportedSampleRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// OpenCapture starts a capture device at sampleRate/channels, invoking cb
// with each delivered block converted to float32 in [-1, 1].
func OpenCapture(sampleRate, channels int, cb CaptureCallback) (*CaptureDevice, error) {
	if !supportedSampleRates[sampleRate] {
		return nil, fmt.Errorf("device: unsupported capture sample rate %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("device: unsupported capture channel count %d", channels)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("device: init context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	onData := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput == nil {
			return
		}
		samples := bytesToFloat32(pInput)
		cb(samples, frameCount)
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("device: init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		return nil, fmt.Errorf("device: start capture device: %w", err)
	}

	return &CaptureDevice{ctx: ctx, device: dev}, nil
}

// Close stops and releases the capture device.
func (c *CaptureDevice) Close() {
	c.device.Uninit()
	c.ctx.Uninit()
}

// PlaybackFiller is invoked whenever the device needs more output
// samples; it should fill as much of out as it has data for and return
// the number of samples written. Returning fewer than len(out) causes
// the remainder to be silence.
type PlaybackFiller func(out []float32) int

// PlaybackDevice owns one malgo playback stream.
type PlaybackDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// OpenPlayback starts a playback device at sampleRate, mono, calling fill
// to produce each block's samples.
func OpenPlayback(sampleRate int, fill PlaybackFiller) (*PlaybackDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("device: init context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	onData := func(pOutput, pInput []byte, frameCount uint32) {
		if pOutput == nil {
			return
		}
		out := make([]float32, frameCount)
		n := fill(out)
		writeFloat32ToBytes(pOutput, out[:n])
		// Remaining bytes beyond n samples stay zero (silence) since
		// pOutput is a fresh callback buffer from malgo.
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("device: init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		return nil, fmt.Errorf("device: start playback device: %w", err)
	}

	return &PlaybackDevice{ctx: ctx, device: dev}, nil
}

// Close stops and releases the playback device.
func (p *PlaybackDevice) Close() {
	p.device.Uninit()
	p.ctx.Uninit()
}

func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func writeFloat32ToBytes(dst []byte, samples []float32) {
	for i, s := range samples {
		bits := math.Float32bits(s)
		dst[i*4] = byte(bits)
		dst[i*4+1] = byte(bits >> 8)
		dst[i*4+2] = byte(bits >> 16)
		dst[i*4+3] = byte(bits >> 24)
	}
}
