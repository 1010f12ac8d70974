package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTail_ReturnsAllWhenUnderCapacity(t *testing.T) {
	b := New(1000, 1000) // 1000 samples capacity
	b.Append([]int16{1, 2, 3}, 0)
	out := b.Tail(1000)
	require.Equal(t, []int16{1, 2, 3}, out)
}

func TestAppend_OverwritesOldestOnOverflow(t *testing.T) {
	b := New(4, 1000) // capacity 4 samples
	b.Append([]int16{1, 2, 3, 4}, 0)
	b.Append([]int16{5, 6}, 0)
	out := b.Tail(1000)
	require.Equal(t, []int16{3, 4, 5, 6}, out)
}

func TestAppend_LargerThanCapacityKeepsTail(t *testing.T) {
	b := New(4, 1000)
	b.Append([]int16{1, 2, 3, 4, 5, 6, 7}, 0)
	out := b.Tail(1000)
	require.Equal(t, []int16{4, 5, 6, 7}, out)
}

func TestClear_EmptiesBuffer(t *testing.T) {
	b := New(10, 1000)
	b.Append([]int16{1, 2, 3}, 0)
	b.Clear()
	require.Equal(t, 0, b.Len())
	require.Nil(t, b.Tail(1000))
}

func TestTailWithTimestamp_DerivesOffsetFromAnchor(t *testing.T) {
	b := New(16000, 1000) // 16kHz, 1s capacity
	b.Append([]int16{10, 20, 30, 40}, 1_000)
	samples, ts := b.TailWithTimestamp(1000)
	require.Equal(t, []int16{10, 20, 30, 40}, samples)
	require.Equal(t, int64(1_000), ts) // first sample lines up with the anchor
}

// Property: the buffer never reports more resident samples than its
// capacity, and the resident count equals min(total appended, capacity).
func TestRingBuffer_CapacityInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capSamples := rapid.IntRange(1, 200).Draw(rt, "cap")
		b := New(capSamples, 1000)

		total := 0
		appends := rapid.IntRange(0, 20).Draw(rt, "appends")
		for i := 0; i < appends; i++ {
			n := rapid.IntRange(0, 50).Draw(rt, "n")
			chunk := make([]int16, n)
			for j := range chunk {
				chunk[j] = int16(rapid.IntRange(-32768, 32767).Draw(rt, "s"))
			}
			b.Append(chunk, int64(i))
			total += n

			if b.Len() > capSamples {
				rt.Fatalf("buffer reports %d resident samples, capacity is %d", b.Len(), capSamples)
			}
			want := total
			if want > capSamples {
				want = capSamples
			}
			if b.Len() != want {
				rt.Fatalf("expected %d resident samples, got %d", want, b.Len())
			}
		}
	})
}
