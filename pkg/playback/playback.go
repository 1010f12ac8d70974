// Package playback owns the output device: a drain loop moves
// synthesized audio from the output queue into the jitter buffer in
// sub-chunk-sized pieces, and a device filler callback pulls from the
// buffer whenever the device needs more samples, carrying any unconsumed
// chunk tail to the next callback.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/device"
	"github.com/babelstream/babelstream/pkg/jitter"
	"github.com/babelstream/babelstream/pkg/logging"
	"github.com/babelstream/babelstream/pkg/pcm"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/session"
)

// Stage owns the playback device and Jitter Buffer.
type Stage struct {
	cfg  config.Config
	sess *session.Session
	log  logging.Logger
	d2   *queue.Queue[pipeline.SynthesizedAudio]
	jb   *jitter.Buffer
	dev  *device.PlaybackDevice

	mu       sync.Mutex
	residual []int16

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Playback Stage. Call Start to open the audio device and
// begin draining D2, or drive DrainOnce/Fill directly in tests.
func New(cfg config.Config, sess *session.Session, log logging.Logger, d2 *queue.Queue[pipeline.SynthesizedAudio]) *Stage {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Stage{
		cfg:    cfg,
		sess:   sess,
		log:    log,
		d2:     d2,
		jb:     jitter.New(cfg.JitterDepthChunks, cfg.JitterMaxChunks),
		closed: make(chan struct{}),
	}
}

// Start opens the playback device and begins the D2 drain loop in a
// background goroutine.
func (s *Stage) Start() error {
	dev, err := device.OpenPlayback(s.cfg.PlaybackSampleRate, s.fill)
	if err != nil {
		return err
	}
	s.dev = dev
	go s.drainLoop()
	return nil
}

// Close stops draining D2, releases the device, and flushes the Jitter
// Buffer.
func (s *Stage) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	if s.dev != nil {
		s.dev.Close()
	}
	s.jb.Flush()
}

func (s *Stage) drainLoop() {
	for {
		select {
		case <-s.closed:
			return
		default:
		}
		out, err := s.d2.TryPop(100 * time.Millisecond)
		if err != nil {
			if err == queue.ErrClosed {
				return
			}
			continue
		}
		s.Enqueue(out)
	}
}

// Enqueue splits one synthesized audio payload into sub-chunk sized
// pieces and pushes each onto the jitter buffer.
func (s *Stage) Enqueue(out pipeline.SynthesizedAudio) {
	sub := s.cfg.PlaybackSubChunk
	if sub <= 0 {
		sub = len(out.PCM)
	}
	for off := 0; off < len(out.PCM); off += sub {
		end := off + sub
		if end > len(out.PCM) {
			end = len(out.PCM)
		}
		chunk := make([]int16, end-off)
		copy(chunk, out.PCM[off:end])
		s.jb.Push(chunk)
	}
	s.sess.Emit(session.PlaybackQueued, out.UtteranceID)
}

// fill is the device.PlaybackFiller callback: it drains the Jitter
// Buffer's int16 chunks into the device's float32 output buffer,
// carrying any unconsumed tail of a chunk to the next callback.
func (s *Stage) fill(out []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for n < len(out) {
		if len(s.residual) == 0 {
			chunk, ok := s.jb.Pop()
			if !ok {
				break
			}
			s.residual = chunk
		}
		take := len(out) - n
		if take > len(s.residual) {
			take = len(s.residual)
		}
		copy(out[n:], pcm.Int16ToFloat(s.residual[:take]))
		s.residual = s.residual[take:]
		n += take
	}
	return n
}

// Fill exposes fill for tests that drive the callback without a real
// device.
func (s *Stage) Fill(out []float32) int { return s.fill(out) }

// DrainOnce runs a single D2 pop/enqueue cycle for tests, returning
// false on timeout or closure.
func (s *Stage) DrainOnce(ctx context.Context, timeout time.Duration) bool {
	out, err := s.d2.TryPop(timeout)
	if err != nil {
		return false
	}
	s.Enqueue(out)
	return true
}
