package jitter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPop_WithholdsUntilPrimed(t *testing.T) {
	b := New(3, 10)
	b.Push([]int16{1})
	b.Push([]int16{2})
	_, ok := b.Pop()
	require.False(t, ok, "should withhold output below priming depth")

	b.Push([]int16{3})
	chunk, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, []int16{1}, chunk)
}

func TestPop_FIFOOrder(t *testing.T) {
	b := New(1, 10)
	b.Push([]int16{1})
	b.Push([]int16{2})
	b.Push([]int16{3})

	var got [][]int16
	for {
		c, ok := b.Pop()
		if !ok {
			break
		}
		got = append(got, c)
	}
	require.Equal(t, [][]int16{{1}, {2}, {3}}, got)
}

func TestPush_DropsOldestBeyondMaxSize(t *testing.T) {
	b := New(1, 2)
	b.Push([]int16{1})
	b.Push([]int16{2})
	b.Push([]int16{3}) // drops {1}

	c, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, []int16{2}, c)
}

func TestFlush_ClearsAndUnprimes(t *testing.T) {
	b := New(1, 10)
	b.Push([]int16{1})
	b.Flush()
	require.Equal(t, 0, b.Len())
	require.False(t, b.Primed())

	_, ok := b.Pop()
	require.False(t, ok)
}

func TestPop_RePrimesAfterRunningDry(t *testing.T) {
	b := New(2, 10)
	b.Push([]int16{1})
	b.Push([]int16{2})
	_, ok := b.Pop()
	require.True(t, ok)
	_, ok = b.Pop()
	require.True(t, ok)

	require.False(t, b.Primed())
	_, ok = b.Pop()
	require.False(t, ok, "buffer ran dry and must re-prime before popping again")

	b.Push([]int16{3})
	_, ok = b.Pop()
	require.False(t, ok, "only one chunk buffered, depth is 2")
}
