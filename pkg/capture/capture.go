// Package capture owns the input device, ring buffer, and VAD segmenter.
// It assembles voiced frames into utterance records and hands them to the
// worker over the bounded ASR-input queue. The device callback runs in a
// soft-realtime context, so every enqueue is bounded by MaxBlockingMs and
// congestion drops the utterance rather than stalling the callback.
package capture

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/babelstream/babelstream/pkg/audio"
	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/device"
	"github.com/babelstream/babelstream/pkg/logging"
	"github.com/babelstream/babelstream/pkg/pcm"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/ringbuffer"
	"github.com/babelstream/babelstream/pkg/session"
	"github.com/babelstream/babelstream/pkg/telemetry"
	"github.com/babelstream/babelstream/pkg/vad"
)

// Clock returns the current time in milliseconds, substitutable in tests.
type Clock func() int64

func systemClockMs() int64 { return time.Now().UnixMilli() }

// Stage owns the capture device and turns its callback stream into
// Utterance Records pushed onto D1.
type Stage struct {
	cfg        config.Config
	sess       *session.Session
	tel        *telemetry.Telemetry
	log        logging.Logger
	d1         *queue.Queue[pipeline.UtteranceRecord]
	sourceLang string // declared source language; empty means auto-detect
	clock      Clock

	ring *ringbuffer.Buffer
	seg  *vad.Segmenter

	accumulator      []int16
	recording        bool
	utteranceStartMs int64

	dev *device.CaptureDevice
}

// New constructs a Stage wired to the given D1 queue. sourceLang is the
// declared source language carried on every Utterance Record (empty in
// auto-detect mode). It does not open the audio device; call Start for
// that, or use ProcessBlock directly in tests.
func New(cfg config.Config, sess *session.Session, tel *telemetry.Telemetry, log logging.Logger, d1 *queue.Queue[pipeline.UtteranceRecord], sourceLang string) *Stage {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	vcfg := vad.Config{
		SampleRate:       cfg.CaptureSampleRate,
		FrameMs:          cfg.FrameMs,
		VoiceThresholdMs: cfg.VoiceThresholdMs,
		SilenceThreshold: cfg.SilenceThreshold,
		Aggressiveness:   cfg.Aggressiveness,
	}
	detector := vad.NewEnergyDetector()
	if cfg.SilenceThreshDBFS != 0 {
		detector.BaseThreshold = math.Pow(10, cfg.SilenceThreshDBFS/20)
	}
	return &Stage{
		cfg:        cfg,
		sess:       sess,
		tel:        tel,
		log:        log,
		d1:         d1,
		sourceLang: sourceLang,
		clock:      systemClockMs,
		ring:       ringbuffer.New(cfg.CaptureSampleRate, cfg.PreRollMs*4+1000),
		seg:        vad.New(vcfg, detector),
	}
}

// Start opens the capture audio device and begins feeding it into the
// Stage. Close releases the device.
func (s *Stage) Start() error {
	dev, err := device.OpenCapture(s.cfg.CaptureSampleRate, s.cfg.CaptureChannels, s.onSamples)
	if err != nil {
		return err
	}
	s.dev = dev
	return nil
}

// Close stops the device and flushes any in-progress utterance, so a
// recording cut off by shutdown is still pushed exactly once.
func (s *Stage) Close(ctx context.Context) {
	if s.dev != nil {
		s.dev.Close()
	}
	s.flushInProgress(ctx)
}

func (s *Stage) onSamples(samples []float32, framesRead uint32) {
	block := floatToInt16(samples)
	if s.cfg.CaptureChannels == 2 {
		block = pcm.StereoToMono(block)
	}
	s.ProcessBlock(context.Background(), block, s.clock())
}

// ProcessBlock runs one device block through the VAD frame by frame,
// zero-padding a trailing partial frame, and drives the capture state
// machine. Each frame is appended to the ring buffer before the segmenter
// sees it, so a start decision's pre-roll copy-out already ends at the
// current frame and the boundary frames themselves are never appended
// twice.
func (s *Stage) ProcessBlock(ctx context.Context, block []int16, blockTimestampMs int64) {
	frameSamples := s.cfg.CaptureSampleRate * s.cfg.FrameMs / 1000
	if frameSamples <= 0 {
		return
	}

	for off := 0; off < len(block); off += frameSamples {
		end := off + frameSamples
		var frame []int16
		if end <= len(block) {
			frame = block[off:end]
		} else {
			frame = make([]int16, frameSamples)
			copy(frame, block[off:])
		}
		frameTs := blockTimestampMs + int64(off)*1000/int64(s.cfg.CaptureSampleRate)
		s.ring.Append(frame, frameTs)

		s.tel.IncTotalFrames()
		d := s.seg.ProcessFrame(frame, frameTs)
		if d.Err != nil {
			s.tel.IncProcessingErrors()
			continue
		}
		if d.IsVoice {
			s.tel.IncVoiceFrames()
		}

		switch {
		case d.ShouldStart:
			// The pre-roll tail copied from the ring already ends with
			// this frame, so the start boundary frame is not appended
			// separately.
			s.startUtterance(frameTs)
			s.recording = true
		case d.ShouldStop:
			// The stop boundary frame is excluded; the silence frames
			// before it were accumulated while still recording and form
			// the trailing pad.
			s.recording = false
			s.finalizeUtterance(ctx, frameTs)
		case s.recording:
			s.accumulator = append(s.accumulator, frame...)
		}
	}
}

// startUtterance seeds the accumulator with the configured pre-roll tail
// copied out of the ring buffer, so audio from just before the voice
// threshold tripped is not lost.
func (s *Stage) startUtterance(frameTs int64) {
	pre, ts := s.ring.TailWithTimestamp(s.cfg.PreRollMs)
	s.accumulator = append(s.accumulator[:0], pre...)
	s.utteranceStartMs = ts
	if len(pre) == 0 {
		s.utteranceStartMs = frameTs
	}
	s.sess.Emit(session.UtteranceStarted, frameTs)
}

func (s *Stage) finalizeUtterance(ctx context.Context, frameTs int64) {
	s.sess.Emit(session.UtteranceStopped, frameTs)
	s.pushAccumulator(ctx)
}

// flushInProgress finalizes a partial recording at shutdown exactly once.
func (s *Stage) flushInProgress(ctx context.Context) {
	if !s.recording || len(s.accumulator) == 0 {
		return
	}
	s.recording = false
	s.pushAccumulator(ctx)
}

func (s *Stage) pushAccumulator(ctx context.Context) {
	if len(s.accumulator) == 0 {
		return
	}
	samples := s.accumulator
	s.accumulator = nil

	wav := audio.Encode(samples, s.cfg.CaptureSampleRate)
	rec := pipeline.UtteranceRecord{
		ID:                 uuid.New(),
		SessionID:          s.sess.ID,
		PCM:                samples,
		SampleRate:         s.cfg.CaptureSampleRate,
		Channels:           s.cfg.CaptureChannels,
		CaptureStartMs:     s.utteranceStartMs,
		WAV:                wav,
		DeclaredSourceLang: s.sourceLang,
	}

	timeout := time.Duration(s.cfg.MaxBlockingMs) * time.Millisecond
	if err := s.d1.TryPush(rec, timeout); err != nil {
		s.tel.IncQueueTimeouts(ctx)
		s.sess.Emit(session.Dropped, rec.ID)
		s.log.Warn("capture: queue full, recording dropped", "utterance_id", rec.ID, "err", err)
		return
	}
	s.tel.IncRecordingsCreated(ctx)
}

func floatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		out[i] = int16(f * 32767)
	}
	return out
}
