// Package ringbuffer implements a fixed-duration circular PCM store: a
// single-producer/single-consumer ring that keeps samples and their
// timestamps in lock-step, overwriting the oldest samples on overflow.
// One time anchor is recorded per appended block; per-sample times are
// derived by offset, avoiding any per-sample bookkeeping on the append
// path.
package ringbuffer

import "sync"

// Buffer is a fixed-capacity circular store of int16 PCM samples tagged
// with a monotonic capture timestamp (milliseconds). It holds the most
// recent Capacity() samples; appends beyond capacity overwrite the oldest.
type Buffer struct {
	mu sync.Mutex

	sampleRate int
	samples    []int16
	// anchors holds one (ring position, length, base timestamp) triple per
	// recent append call; per-sample timestamps are derived by offset from
	// an anchor instead of storing one timestamp per sample.
	anchors []anchor

	writeIdx int // next write position
	count    int // valid samples currently held, <= len(samples)
}

type anchor struct {
	startSampleIdx int   // ring position of the first sample of this append
	n              int   // number of samples written in this append
	baseTimestamp  int64 // capture timestamp (ms) of the first sample
}

// New creates a Buffer holding up to durationMs milliseconds of audio at
// sampleRate samples/sec.
func New(sampleRate, durationMs int) *Buffer {
	n := sampleRate * durationMs / 1000
	if n <= 0 {
		n = 1
	}
	return &Buffer{
		sampleRate: sampleRate,
		samples:    make([]int16, n),
	}
}

// Append writes samples into the ring, tagging the whole block with a
// single base timestamp (the capture time of samples[0]); per-sample
// timestamps are baseTimestampMs + i*1000/sampleRate. Overflowing samples
// overwrite the oldest resident samples.
func (b *Buffer) Append(samples []int16, baseTimestampMs int64) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cap := len(b.samples)
	n := len(samples)

	// A single append larger than the whole ring: only the tail matters.
	if n > cap {
		samples = samples[n-cap:]
		baseTimestampMs += int64(n-cap) * 1000 / int64(b.sampleRate)
		n = cap
	}

	start := b.writeIdx
	for i, s := range samples {
		b.samples[(b.writeIdx+i)%cap] = s
	}
	b.writeIdx = (b.writeIdx + n) % cap
	if b.count < cap {
		b.count += n
		if b.count > cap {
			b.count = cap
		}
	}

	b.anchors = append(b.anchors, anchor{startSampleIdx: start, n: n, baseTimestamp: baseTimestampMs})
	b.pruneAnchorsLocked()
}

// pruneAnchorsLocked bounds the anchor slice. Positions older than the
// retained anchors are extrapolated backwards from the oldest one, which
// is exact for a contiguous stream, so only a handful need to be kept.
func (b *Buffer) pruneAnchorsLocked() {
	if len(b.anchors) > 4 {
		b.anchors = b.anchors[len(b.anchors)-4:]
	}
}

// Tail copies out the most recent durationMs milliseconds of samples (or
// all resident samples if fewer are available), oldest first.
func (b *Buffer) Tail(durationMs int) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := b.sampleRate * durationMs / 1000
	if want > b.count {
		want = b.count
	}
	if want <= 0 {
		return nil
	}

	cap := len(b.samples)
	out := make([]int16, want)
	start := (b.writeIdx - want + cap) % cap
	for i := 0; i < want; i++ {
		out[i] = b.samples[(start+i)%cap]
	}
	return out
}

// TailWithTimestamp is like Tail but also returns the capture timestamp
// (ms) of the first returned sample, derived from the most recent anchor
// by sample offset rather than a stored per-sample timestamp.
func (b *Buffer) TailWithTimestamp(durationMs int) ([]int16, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := b.sampleRate * durationMs / 1000
	if want > b.count {
		want = b.count
	}
	if want <= 0 {
		return nil, 0
	}

	cap := len(b.samples)
	start := (b.writeIdx - want + cap) % cap
	out := make([]int16, want)
	for i := 0; i < want; i++ {
		out[i] = b.samples[(start+i)%cap]
	}

	ts := b.timestampForRingIndexLocked(start)
	return out, ts
}

// timestampForRingIndexLocked derives the capture timestamp of the sample
// at the given ring position from the newest anchor that covers it. A
// position older than every retained anchor is extrapolated backwards from
// the oldest one: the stream is contiguous at sampleRate, so the distance
// in samples is also the distance in time.
func (b *Buffer) timestampForRingIndexLocked(ringIdx int) int64 {
	if len(b.anchors) == 0 {
		return 0
	}
	for i := len(b.anchors) - 1; i >= 0; i-- {
		a := b.anchors[i]
		offset := ringIdx - a.startSampleIdx
		if offset < 0 {
			offset += len(b.samples)
		}
		if offset < a.n {
			return a.baseTimestamp + int64(offset)*1000/int64(b.sampleRate)
		}
	}
	oldest := b.anchors[0]
	back := oldest.startSampleIdx - ringIdx
	if back < 0 {
		back += len(b.samples)
	}
	return oldest.baseTimestamp - int64(back)*1000/int64(b.sampleRate)
}

// Clear drops all buffered content.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeIdx = 0
	b.count = 0
	b.anchors = nil
}

// Len returns the number of samples currently resident.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the maximum number of samples the ring can hold.
func (b *Buffer) Capacity() int {
	return len(b.samples)
}
