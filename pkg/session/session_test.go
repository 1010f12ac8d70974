package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_AssignsUniqueID(t *testing.T) {
	a := New()
	b := New()
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.StartedAt.IsZero())
}

func TestEmit_DeliversOnEventsChannel(t *testing.T) {
	s := New()
	s.Emit(UtteranceStarted, "payload")

	ev := <-s.Events()
	require.Equal(t, UtteranceStarted, ev.Type)
	require.Equal(t, s.ID, ev.SessionID)
	require.Equal(t, "payload", ev.Data)
}

func TestEmit_DropsWhenChannelFull(t *testing.T) {
	s := New()
	for i := 0; i < 1024; i++ {
		s.Emit(Dropped, i)
	}
	require.NotPanics(t, func() { s.Emit(Dropped, "overflow") })
}

func TestClose_IsIdempotent(t *testing.T) {
	s := New()
	require.NotPanics(t, func() {
		s.Close()
		s.Close()
	})
}
