// Package pipeline holds the value types shared across pipeline stages,
// so capture, worker, and playback depend on one small, stable
// vocabulary instead of each other's internals.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// UtteranceRecord is the immutable value produced when the VAD segmenter
// closes a voiced segment. It is moved (not shared) from capture into
// the ASR-input queue; the worker owns it from that point on.
type UtteranceRecord struct {
	ID        uuid.UUID
	SessionID uuid.UUID

	PCM            []int16 // pre-roll + voiced + trailing pad
	SampleRate     int
	Channels       int
	CaptureStartMs int64
	WAV            []byte

	DeclaredSourceLang string // from CLI/config; empty means auto-detect
}

// Duration returns the utterance's audio duration, computed from sample
// count and rate.
func (u UtteranceRecord) Duration() time.Duration {
	if u.SampleRate == 0 {
		return 0
	}
	secs := float64(len(u.PCM)) / float64(u.SampleRate)
	return time.Duration(secs * float64(time.Second))
}

// PhaseOutcome is the result of one worker phase. Value is the phase's
// product (text, translated text, PCM); Err is set for a recoverable
// failure which the caller decides how to proceed past — only
// unrecoverable conditions terminate the pipeline.
type PhaseOutcome[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful phase result.
func Ok[T any](v T) PhaseOutcome[T] { return PhaseOutcome[T]{Value: v} }

// Fail wraps a recoverable phase failure.
func Fail[T any](err error) PhaseOutcome[T] {
	var zero T
	return PhaseOutcome[T]{Value: zero, Err: err}
}

// TranslationJob is the transient per-utterance state inside the worker:
// created on dequeue, destroyed after the synthesized audio is enqueued
// for playback or a terminal error.
type TranslationJob struct {
	Utterance UtteranceRecord

	SourceText       PhaseOutcome[string]
	DetectedLanguage string
	TranslatedText   PhaseOutcome[string]
	SynthesizedPCM   PhaseOutcome[[]int16]

	ASRLatency time.Duration
	MTLatency  time.Duration
	TTSLatency time.Duration
	StartedAt  time.Time
	Errors     []string
}

// AddError appends a human-readable error note to the job's telemetry
// trail without failing the job outright, so an operator can reconstruct
// what happened to a given utterance.
func (j *TranslationJob) AddError(msg string) {
	j.Errors = append(j.Errors, msg)
}

// SynthesizedAudio is the Worker's output, transferred into D2; Playback
// owns it from that point on via the Jitter Buffer.
type SynthesizedAudio struct {
	UtteranceID uuid.UUID
	SessionID   uuid.UUID
	PCM         []int16 // resampled to playback rate, peak-normalized
	SampleRate  int
}
