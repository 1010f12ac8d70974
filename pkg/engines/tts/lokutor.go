// Package tts provides speech-synthesis clients implementing the
// engines.TTSEngine contract. The Lokutor client speaks a websocket
// protocol: one JSON request, a stream of binary audio chunks, then a
// text EOS marker.
package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Lokutor streams synthesis requests over a persistent websocket
// connection to Lokutor's TTS service.
type Lokutor struct {
	apiKey string
	host   string
	scheme string // "wss" in production; tests override to "ws" against httptest

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLokutor(apiKey string) *Lokutor {
	return &Lokutor{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

func (t *Lokutor) Name() string { return "lokutor-tts" }

func (t *Lokutor) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("lokutor tts: dial: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// Synthesize buffers the full streamed response before returning, for
// callers (the Worker Stage) that need the complete clip before decoding
// and resampling to the playback rate.
func (t *Lokutor) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	var out []byte
	err := t.StreamSynthesize(ctx, text, voice, lang, func(chunk []byte) error {
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StreamSynthesize pushes each binary audio chunk to onChunk as it
// arrives, so a caller can consume audio before the whole utterance has
// been synthesized. Synthesize is built on it and collects every chunk.
func (t *Lokutor) StreamSynthesize(ctx context.Context, text, voice, lang string, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]any{
		"text":    text,
		"voice":   voice,
		"lang":    lang,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("lokutor tts: send request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("lokutor tts: read: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor tts: %s", msg)
			}
		}
	}
}

func (t *Lokutor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
