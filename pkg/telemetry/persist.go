package telemetry

import (
	"context"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// persistRecord and persistRollup are the wire schema for the optional
// telemetry persistence sink: two tables, per-step events and
// per-session rollups, each an append-only msgpack-encoded stream.
type persistRecord struct {
	SessionID string         `msgpack:"session_id"`
	ThreadID  int            `msgpack:"thread_id"`
	Timestamp int64          `msgpack:"timestamp_unix_ms"`
	Step      string         `msgpack:"step"`
	Channel   string         `msgpack:"channel"`
	Message   string         `msgpack:"message"`
	LatencyMs float64        `msgpack:"latency_ms"`
	ModelUsed string         `msgpack:"model_used"`
	Language  string         `msgpack:"language"`
	Errors    []string       `msgpack:"errors,omitempty"`
	Metadata  map[string]any `msgpack:"metadata,omitempty"`
}

type persistRollup struct {
	SessionID         string `msgpack:"session_id"`
	TotalFrames       int64  `msgpack:"total_frames"`
	VoiceFrames       int64  `msgpack:"voice_frames"`
	RecordingsCreated int64  `msgpack:"recordings_created"`
	QueueTimeouts     int64  `msgpack:"queue_timeouts"`
	ProcessingErrors  int64  `msgpack:"processing_errors"`
	ASRLatencyMs      int64  `msgpack:"asr_latency_ms"`
	MTLatencyMs       int64  `msgpack:"mt_latency_ms"`
	TTSLatencyMs      int64  `msgpack:"tts_latency_ms"`
	E2ELatencyMs      int64  `msgpack:"e2e_latency_ms"`
}

// MsgpackSink appends msgpack-encoded records back to back to an
// io.Writer, with no extra framing (msgpack values are self-delimiting).
// Safe for concurrent use; writes are serialized so records never
// interleave.
type MsgpackSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *msgpack.Encoder
}

// NewMsgpackSink wraps w (an open file or in-memory buffer in tests) as
// a telemetry persistence sink.
func NewMsgpackSink(w io.Writer) *MsgpackSink {
	return &MsgpackSink{w: w, enc: msgpack.NewEncoder(w)}
}

func (m *MsgpackSink) Record(ctx context.Context, r Record) {
	rec := persistRecord{
		SessionID: r.SessionID.String(),
		ThreadID:  int(r.ThreadID),
		Timestamp: r.Timestamp.UnixMilli(),
		Step:      string(r.Step),
		Channel:   r.Channel,
		Message:   r.Message,
		LatencyMs: r.LatencyMs,
		ModelUsed: r.ModelUsed,
		Language:  r.Language,
		Errors:    r.Errors,
		Metadata:  r.Metadata,
	}
	m.write(rec)
}

func (m *MsgpackSink) Rollup(ctx context.Context, s Snapshot) {
	rec := persistRollup{
		SessionID:         s.SessionID.String(),
		TotalFrames:       s.TotalFrames,
		VoiceFrames:       s.VoiceFrames,
		RecordingsCreated: s.RecordingsCreated,
		QueueTimeouts:     s.QueueTimeouts,
		ProcessingErrors:  s.ProcessingErrors,
		ASRLatencyMs:      s.ASRLatencyMs,
		MTLatencyMs:       s.MTLatencyMs,
		TTSLatencyMs:      s.TTSLatencyMs,
		E2ELatencyMs:      s.E2ELatencyMs,
	}
	m.write(rec)
}

func (m *MsgpackSink) write(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Errors are swallowed: a telemetry sink must never propagate
	// failures back into the pipeline. Persistence is best-effort.
	_ = m.enc.Encode(v)
}
