// Package telemetry implements per-session pipeline telemetry: atomic
// counters plus pluggable sinks that all tolerate concurrent writes from
// every stage. Three sinks ship with the package: a print sink
// (structured logger), an OpenTelemetry metrics sink, and an optional
// msgpack persistence sink.
package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/babelstream/babelstream/pkg/logging"
)

// StepKind tags which pipeline phase produced a Record.
type StepKind string

const (
	StepCapture     StepKind = "capture"
	StepASR         StepKind = "asr"
	StepTranslation StepKind = "translation"
	StepSynthesis   StepKind = "synthesis"
	StepPlayback    StepKind = "playback"
)

// ThreadID identifies which of the four long-lived goroutines produced
// a Record.
type ThreadID int

const (
	ThreadCapture  ThreadID = 1
	ThreadWorker   ThreadID = 2
	ThreadPlayback ThreadID = 3
	ThreadMonitor  ThreadID = 4
)

// Well-known Record.Message values for the counter-style events a Sink
// may key off of (e.g. OTelSink increments a counter instrument on
// these rather than re-deriving deltas from a cumulative Snapshot).
const (
	msgRecordingCreated = "recording created"
	msgQueueTimeout     = "queue full — recording dropped"
)

// Record is one per-step telemetry event.
type Record struct {
	SessionID  uuid.UUID
	ThreadID   ThreadID
	Timestamp  time.Time
	Step       StepKind
	Channel    string
	Message    string
	LatencyMs  float64
	ModelUsed  string
	Language   string
	Errors     []string
	Metadata   map[string]any
}

// Sink receives telemetry records and rollups. Implementations must
// tolerate concurrent calls from all stages.
type Sink interface {
	Record(ctx context.Context, r Record)
	Rollup(ctx context.Context, s Snapshot)
}

// Snapshot is a point-in-time read of the session counters, suitable for
// a per-session rollup record or a periodic print.
type Snapshot struct {
	SessionID         uuid.UUID
	TotalFrames       int64
	VoiceFrames       int64
	RecordingsCreated int64
	QueueTimeouts     int64
	ProcessingErrors  int64
	ASRLatencyMs      int64 // last observed, milliseconds
	MTLatencyMs       int64
	TTSLatencyMs      int64
	E2ELatencyMs      int64
}

// Telemetry holds the per-session counters plus the configured sinks.
// All counters are updated via atomic increments so every stage can
// write without a lock.
type Telemetry struct {
	sessionID uuid.UUID
	sinks     []Sink

	totalFrames       int64
	voiceFrames       int64
	recordingsCreated int64
	queueTimeouts     int64
	processingErrors  int64
	asrLatencyMs      int64
	mtLatencyMs       int64
	ttsLatencyMs      int64
	e2eLatencyMs      int64
}

// New creates a Telemetry instance for sessionID, fanning records and
// rollups out to every given sink.
func New(sessionID uuid.UUID, sinks ...Sink) *Telemetry {
	return &Telemetry{sessionID: sessionID, sinks: sinks}
}

func (t *Telemetry) IncTotalFrames() { atomic.AddInt64(&t.totalFrames, 1) }
func (t *Telemetry) IncVoiceFrames() { atomic.AddInt64(&t.voiceFrames, 1) }

// IncRecordingsCreated bumps the counter and fans a recording-created
// event out to sinks.
func (t *Telemetry) IncRecordingsCreated(ctx context.Context) {
	atomic.AddInt64(&t.recordingsCreated, 1)
	t.Record(ctx, Record{ThreadID: ThreadCapture, Step: StepCapture, Message: msgRecordingCreated})
}

// IncQueueTimeouts bumps the counter and fans a backpressure-drop event
// out to sinks.
func (t *Telemetry) IncQueueTimeouts(ctx context.Context) {
	atomic.AddInt64(&t.queueTimeouts, 1)
	t.Record(ctx, Record{ThreadID: ThreadCapture, Step: StepCapture, Message: msgQueueTimeout, Errors: []string{msgQueueTimeout}})
}

func (t *Telemetry) IncProcessingErrors() { atomic.AddInt64(&t.processingErrors, 1) }

func (t *Telemetry) SetASRLatencyMs(ms int64) { atomic.StoreInt64(&t.asrLatencyMs, ms) }
func (t *Telemetry) SetMTLatencyMs(ms int64)  { atomic.StoreInt64(&t.mtLatencyMs, ms) }
func (t *Telemetry) SetTTSLatencyMs(ms int64) { atomic.StoreInt64(&t.ttsLatencyMs, ms) }
func (t *Telemetry) SetE2ELatencyMs(ms int64) { atomic.StoreInt64(&t.e2eLatencyMs, ms) }

// Snapshot returns a consistent-enough point-in-time read of all
// counters (each field is read atomically; the set as a whole is not a
// single atomic transaction, which is acceptable for monitoring).
func (t *Telemetry) Snapshot() Snapshot {
	return Snapshot{
		SessionID:         t.sessionID,
		TotalFrames:       atomic.LoadInt64(&t.totalFrames),
		VoiceFrames:       atomic.LoadInt64(&t.voiceFrames),
		RecordingsCreated: atomic.LoadInt64(&t.recordingsCreated),
		QueueTimeouts:     atomic.LoadInt64(&t.queueTimeouts),
		ProcessingErrors:  atomic.LoadInt64(&t.processingErrors),
		ASRLatencyMs:      atomic.LoadInt64(&t.asrLatencyMs),
		MTLatencyMs:       atomic.LoadInt64(&t.mtLatencyMs),
		TTSLatencyMs:      atomic.LoadInt64(&t.ttsLatencyMs),
		E2ELatencyMs:      atomic.LoadInt64(&t.e2eLatencyMs),
	}
}

// Record fans a per-step event out to every configured sink, stamping it
// with this session's id if the caller left it zero.
func (t *Telemetry) Record(ctx context.Context, r Record) {
	if r.SessionID == uuid.Nil {
		r.SessionID = t.sessionID
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	for _, s := range t.sinks {
		s.Record(ctx, r)
	}
}

// FlushRollup pushes the current Snapshot to every sink, used at session
// end or on a periodic Monitor tick.
func (t *Telemetry) FlushRollup(ctx context.Context) {
	snap := t.Snapshot()
	for _, s := range t.sinks {
		s.Rollup(ctx, snap)
	}
}

// PrintSink logs periodic summaries through a structured Logger.
type PrintSink struct {
	Log logging.Logger
}

func (p PrintSink) Record(ctx context.Context, r Record) {
	kv := []any{
		"session", r.SessionID,
		"step", r.Step,
		"thread", r.ThreadID,
		"latency_ms", r.LatencyMs,
	}
	if r.ModelUsed != "" {
		kv = append(kv, "model", r.ModelUsed)
	}
	if r.Language != "" {
		kv = append(kv, "language", r.Language)
	}
	if len(r.Errors) > 0 {
		p.Log.Warn(r.Message, append(kv, "errors", r.Errors)...)
		return
	}
	p.Log.Debug(r.Message, kv...)
}

func (p PrintSink) Rollup(ctx context.Context, s Snapshot) {
	p.Log.Info("session rollup",
		"session", s.SessionID,
		"total_frames", s.TotalFrames,
		"voice_frames", s.VoiceFrames,
		"recordings_created", s.RecordingsCreated,
		"queue_timeouts", s.QueueTimeouts,
		"processing_errors", s.ProcessingErrors,
		"asr_latency_ms", s.ASRLatencyMs,
		"mt_latency_ms", s.MTLatencyMs,
		"tts_latency_ms", s.TTSLatencyMs,
		"e2e_latency_ms", s.E2ELatencyMs,
	)
}
