// Package session provides the per-run correlation identifier attached
// to every utterance record and telemetry event, plus an Events channel
// so callers (CLI, tests) can observe pipeline lifecycle events without
// polling telemetry counters directly.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType tags the kind of lifecycle event carried on Session.Events().
type EventType string

const (
	UtteranceStarted  EventType = "utterance_started"
	UtteranceStopped  EventType = "utterance_stopped"
	TranscriptReady   EventType = "transcript_ready"
	TranslationReady  EventType = "translation_ready"
	SynthesisReady    EventType = "synthesis_ready"
	PlaybackQueued    EventType = "playback_queued"
	Dropped           EventType = "dropped"
	ErrorEvent        EventType = "error"
)

// Event is one pipeline lifecycle notification.
type Event struct {
	Type      EventType
	SessionID uuid.UUID
	Data      any
	At        time.Time
}

// Session is the correlation identifier for one pipeline run.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	mu        sync.Mutex
	events    chan Event
	closeOnce sync.Once
}

// New creates a Session with a fresh id and an event channel buffered
// generously enough that a slow consumer doesn't stall the pipeline.
func New() *Session {
	return &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		events:    make(chan Event, 1024),
	}
}

// Events returns the read side of the session's lifecycle event stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Emit publishes an event, tagging it with this session's id and the
// current time. Drops silently if the channel is full rather than
// blocking the pipeline stage — telemetry counters are the stats of
// record, Events() is a best-effort observation stream.
func (s *Session) Emit(typ EventType, data any) {
	ev := Event{Type: typ, SessionID: s.ID, Data: data, At: time.Now()}
	select {
	case s.events <- ev:
	default:
	}
}

// Close shuts down the event stream. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}
