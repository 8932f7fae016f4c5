package timer

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handle identifies a scheduled action. The zero Handle is never issued.
type Handle uint64

// Service runs one-shot delayed actions that can be canceled before they fire.
type Service struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
	logger *zap.Logger
}

// NewService creates an empty timer service
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		timers: make(map[Handle]*time.Timer),
		logger: logger,
	}
}

// Schedule runs action on its own goroutine after delay
func (s *Service) Schedule(delay time.Duration, action func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(delay, func() { s.fire(h, action) })
	return h
}

func (s *Service) fire(h Handle, action func()) {
	s.mu.Lock()
	_, armed := s.timers[h]
	delete(s.timers, h)
	s.mu.Unlock()

	// Canceled between the runtime firing and us taking the lock.
	if !armed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled action panicked", zap.Uint64("handle", uint64(h)), zap.Any("panic", r))
		}
	}()
	action()
}

// Cancel stops a pending action. Canceling an unknown, fired or already
// canceled handle is a no-op.
func (s *Service) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}

// Active returns the number of armed timers
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every armed timer
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, t := range s.timers {
		t.Stop()
		delete(s.timers, h)
	}
}
