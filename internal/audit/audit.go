package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind is the verification transition being recorded
type Kind string

const (
	KindJoined   Kind = "joined"
	KindVerified Kind = "verified"
	KindExpired  Kind = "expired"
)

// Event is one verification transition
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	UserID  string    `json:"user_id"`
	GroupID string    `json:"group_id"`
	At      time.Time `json:"at"`
}

// NewEvent stamps a transition with a fresh ID and the current time
func NewEvent(kind Kind, userID, groupID string) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		UserID:  userID,
		GroupID: groupID,
		At:      time.Now().UTC(),
	}
}

// Sink receives verification transitions
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Multi fans an event out to every sink, collecting their errors
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
