package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleFires(t *testing.T) {
	s := NewService(nil)
	var fired atomic.Int32

	h := s.Schedule(10*time.Millisecond, func() { fired.Add(1) })
	require.NotZero(t, h)
	require.Equal(t, 1, s.Active())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, s.Active())
}

func TestCancelPreventsFire(t *testing.T) {
	s := NewService(nil)
	var fired atomic.Int32

	h := s.Schedule(30*time.Millisecond, func() { fired.Add(1) })
	s.Cancel(h)
	s.Cancel(h)

	time.Sleep(80 * time.Millisecond)
	require.Zero(t, fired.Load())
	require.Equal(t, 0, s.Active())
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	s := NewService(nil)
	done := make(chan struct{})

	h := s.Schedule(time.Millisecond, func() { close(done) })
	<-done
	require.NotPanics(t, func() { s.Cancel(h) })
	require.NotPanics(t, func() { s.Cancel(Handle(9999)) })
}

func TestPanickingActionIsRecovered(t *testing.T) {
	s := NewService(nil)
	var after atomic.Bool

	s.Schedule(time.Millisecond, func() { panic("boom") })
	s.Schedule(5*time.Millisecond, func() { after.Store(true) })

	require.Eventually(t, after.Load, time.Second, 5*time.Millisecond)
}

func TestStopCancelsAll(t *testing.T) {
	s := NewService(nil)
	var fired atomic.Int32

	for i := 0; i < 5; i++ {
		s.Schedule(20*time.Millisecond, func() { fired.Add(1) })
	}
	require.Equal(t, 5, s.Active())

	s.Stop()
	time.Sleep(60 * time.Millisecond)
	require.Zero(t, fired.Load())
	require.Equal(t, 0, s.Active())
}
