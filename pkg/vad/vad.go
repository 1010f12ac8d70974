// Package vad implements the frame-level Voice Activity Detection state
// machine: a start/stop hysteresis built from consecutive voice/silence
// frame streaks, not a wall-clock timer, so its transitions are
// frame-accurate. The per-frame voice/silence classification itself is
// pluggable via VoiceDetector so the default energy detector can be
// swapped for a model-backed one without touching the state machine.
package vad

import (
	"errors"
	"fmt"
	"math"
)

// errFrameSize is wrapped into the Decision.Err returned for a frame whose
// length doesn't match the configured frame size; the frame is skipped
// and segmenter state is unchanged.
var errFrameSize = errors.New("frame size mismatch")

// State is the current recording state of a Segmenter instance.
type State int

const (
	Idle State = iota
	Recording
)

// VoiceDetector classifies a single fixed-duration frame as voice or
// silence. Aggressiveness is 0-3; higher values should classify more
// frames as silence.
type VoiceDetector interface {
	IsVoice(frame []int16, aggressiveness int) bool
}

// EnergyDetector is the default RMS-energy-based VoiceDetector.
// Aggressiveness raises the effective threshold: each step roughly
// doubles it.
type EnergyDetector struct {
	BaseThreshold float64 // RMS in [0,1], default 0.02 (~-34 dBFS)
}

// NewEnergyDetector returns an EnergyDetector with the default threshold.
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{BaseThreshold: 0.02}
}

func (d *EnergyDetector) IsVoice(frame []int16, aggressiveness int) bool {
	if len(frame) == 0 {
		return false
	}
	var sum float64
	for _, s := range frame {
		f := float64(s) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(frame)))

	threshold := d.BaseThreshold
	for i := 0; i < aggressiveness; i++ {
		threshold *= 2
	}
	return rms > threshold
}

// DecisionErrorKind tags a non-fatal frame-size mismatch.
type DecisionErrorKind string

const FrameSizeMismatch DecisionErrorKind = "frame_size_mismatch"

// Decision is the result of processing one frame.
type Decision struct {
	IsVoice             bool
	IsRecording         bool
	ShouldStart         bool
	ShouldStop          bool
	RecordingDurationMs int64 // valid when ShouldStop
	Err                 error // set (wrapping errFrameSize) on a rejected frame; state unchanged
}

// Config tunes the hysteresis thresholds and expected frame shape.
type Config struct {
	SampleRate        int // one of 8000, 16000, 32000, 48000
	FrameMs           int // 10, 20, or 30
	VoiceThresholdMs  int // default 200
	SilenceThreshold  int // default 400 (ms)
	Aggressiveness    int // 0-3, forwarded to the VoiceDetector
}

// DefaultConfig returns the pipeline defaults: 16kHz, 30ms frames, 200ms
// voice threshold, 400ms silence threshold.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		FrameMs:          30,
		VoiceThresholdMs: 200,
		SilenceThreshold: 400,
		Aggressiveness:   0,
	}
}

func (c Config) frameSamples() int {
	return c.SampleRate * c.FrameMs / 1000
}

// voiceStreakTarget (V) and silenceStreakTarget (S) are the number of
// consecutive frames required to confirm a transition.
func (c Config) voiceStreakTarget() int {
	v := c.VoiceThresholdMs / c.FrameMs
	if v < 1 {
		v = 1
	}
	return v
}

func (c Config) silenceStreakTarget() int {
	s := c.SilenceThreshold / c.FrameMs
	if s < 1 {
		s = 1
	}
	return s
}

// Segmenter holds the VAD state. Once a frame has been processed, exactly
// one of voiceStreak/silenceStreak is nonzero (the invariant tested in
// vad_test.go); both are zero only before the first frame and after Reset.
type Segmenter struct {
	cfg      Config
	detector VoiceDetector

	state            State
	voiceStreak      int
	silenceStreak    int
	recordingStartMs int64
}

// New creates a Segmenter with the given config and voice detector. A nil
// detector defaults to EnergyDetector.
func New(cfg Config, detector VoiceDetector) *Segmenter {
	if detector == nil {
		detector = NewEnergyDetector()
	}
	return &Segmenter{cfg: cfg, detector: detector}
}

// ProcessFrame advances the hysteresis state machine by one frame.
// frameTimestampMs is the capture timestamp of the frame's first sample,
// used to compute RecordingDurationMs on ShouldStop.
func (s *Segmenter) ProcessFrame(frame []int16, frameTimestampMs int64) Decision {
	want := s.cfg.frameSamples()
	if len(frame) != want {
		return Decision{Err: fmt.Errorf("vad: %w: got %d samples, want %d", errFrameSize, len(frame), want)}
	}

	isVoice := s.detector.IsVoice(frame, s.cfg.Aggressiveness)
	d := Decision{IsVoice: isVoice}

	switch s.state {
	case Idle:
		if isVoice {
			s.voiceStreak++
			s.silenceStreak = 0
			if s.voiceStreak >= s.cfg.voiceStreakTarget() {
				s.state = Recording
				s.recordingStartMs = frameTimestampMs - int64(s.voiceStreak-1)*int64(s.cfg.FrameMs)
				d.ShouldStart = true
				d.IsRecording = true
			}
		} else {
			s.silenceStreak++
			s.voiceStreak = 0
		}
	case Recording:
		d.IsRecording = true
		if isVoice {
			s.voiceStreak++
			s.silenceStreak = 0
		} else {
			s.silenceStreak++
			s.voiceStreak = 0
			if s.silenceStreak >= s.cfg.silenceStreakTarget() {
				s.state = Idle
				d.ShouldStop = true
				d.IsRecording = false
				stopMs := frameTimestampMs + int64(s.cfg.FrameMs)
				d.RecordingDurationMs = stopMs - s.recordingStartMs
			}
		}
	}

	return d
}

// Reset returns the segmenter to Idle with zeroed streaks.
func (s *Segmenter) Reset() {
	s.state = Idle
	s.voiceStreak = 0
	s.silenceStreak = 0
	s.recordingStartMs = 0
}

// IsRecording reports whether the segmenter is currently in Recording state.
func (s *Segmenter) IsRecording() bool {
	return s.state == Recording
}
