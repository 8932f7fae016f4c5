package pending

import (
	"sync"
	"time"

	"gatekeeper-bot/internal/timer"
)

// State is the verification state of a member
type State int

const (
	Pending State = iota
	Verified
	Expired
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Verified:
		return "verified"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Record tracks one member waiting to answer the challenge
type Record struct {
	ID       uint64
	UserID   string
	GroupID  string
	State    State
	JoinedAt time.Time
	Timer    timer.Handle
}

// Canceler cancels a scheduled expiry
type Canceler interface {
	Cancel(h timer.Handle)
}

// ArmFunc schedules the expiry for a freshly created record and returns its
// handle. It runs with the store locked and must not call back into the store.
type ArmFunc func(rec Record) timer.Handle

// Store is the sole owner of verification records, keyed by user ID
type Store struct {
	mu      sync.Mutex
	nextID  uint64
	records map[string]*Record
	timers  Canceler
	now     func() time.Time
}

// NewStore creates an empty store. timers is used to cancel expiries that
// are superseded or no longer needed.
func NewStore(timers Canceler) *Store {
	return &Store{
		records: make(map[string]*Record),
		timers:  timers,
		now:     time.Now,
	}
}

// Put creates a pending record for the user. An existing record is replaced
// and its expiry canceled.
func (s *Store) Put(userID, groupID string, arm ArmFunc) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[userID]; ok {
		s.timers.Cancel(old.Timer)
	}

	s.nextID++
	rec := &Record{
		ID:       s.nextID,
		UserID:   userID,
		GroupID:  groupID,
		State:    Pending,
		JoinedAt: s.now(),
	}
	if arm != nil {
		rec.Timer = arm(*rec)
	}
	s.records[userID] = rec
	return *rec
}

// Get returns a copy of the user's record
func (s *Store) Get(userID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// MarkVerified resolves a pending record as verified, cancels its expiry and
// removes it. Returns false if the user had no pending record.
func (s *Store) MarkVerified(userID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok || rec.State != Pending {
		return Record{}, false
	}
	rec.State = Verified
	s.timers.Cancel(rec.Timer)
	delete(s.records, userID)
	return *rec, true
}

// RemoveIfUnverified expires the record with the given ID if it is still
// pending. A record that was verified or replaced by a later join is left
// alone.
func (s *Store) RemoveIfUnverified(userID string, recordID uint64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok || rec.ID != recordID || rec.State != Pending {
		return Record{}, false
	}
	rec.State = Expired
	delete(s.records, userID)
	return *rec, true
}

// Len returns the number of pending records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
