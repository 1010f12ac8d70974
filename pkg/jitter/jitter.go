// Package jitter implements the playback-side jitter buffer: it smooths
// the worker's bursty PCM emission against a playback device that drains
// on a fixed periodic schedule. The buffer withholds output until it has
// accumulated `depth` chunks, then drains steadily even if the
// producer's next chunk is momentarily late.
package jitter

import "sync"

// Buffer is a fixed-capacity FIFO of PCM chunks with priming depth.
// Safe for concurrent Push/Pop from different goroutines.
type Buffer struct {
	mu sync.Mutex

	chunks  [][]int16
	depth   int // chunks to accumulate before Pop starts returning data
	primed  bool
	maxSize int // backstop capacity; oldest dropped beyond this
}

// New creates a Buffer that withholds playback until depth chunks have
// been pushed, then pops steadily. maxSize bounds total buffered chunks
// to avoid unbounded growth if the consumer stalls; depth is clamped to
// maxSize.
func New(depth, maxSize int) *Buffer {
	if depth < 1 {
		depth = 1
	}
	if maxSize < depth {
		maxSize = depth
	}
	return &Buffer{depth: depth, maxSize: maxSize}
}

// Push appends one PCM chunk. If the buffer is at maxSize, the oldest
// chunk is dropped to make room.
func (b *Buffer) Push(chunk []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) >= b.maxSize {
		b.chunks = b.chunks[1:]
	}
	b.chunks = append(b.chunks, chunk)
	if !b.primed && len(b.chunks) >= b.depth {
		b.primed = true
	}
}

// Pop removes and returns the oldest chunk. ok is false if the buffer is
// not primed (depth chunks have not accumulated since creation, Flush, or
// the last time it ran dry) or is currently empty.
func (b *Buffer) Pop() (chunk []int16, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.primed || len(b.chunks) == 0 {
		return nil, false
	}
	chunk = b.chunks[0]
	b.chunks = b.chunks[1:]
	if len(b.chunks) == 0 {
		b.primed = false // re-prime after running dry
	}
	return chunk, true
}

// Flush drops all buffered chunks and resets priming state, used when
// playback is interrupted (e.g. barge-in) and stale audio must not play.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.primed = false
}

// Len returns the number of chunks currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Primed reports whether the buffer is primed: it reached depth chunks and
// has not run dry or been flushed since, so Pop returns data even when
// fewer than depth chunks remain.
func (b *Buffer) Primed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.primed
}
