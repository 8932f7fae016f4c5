package admin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "gatekeeper-bot/internal/errors"
)

// State holds the runtime-mutable admin set and the broadcast ("pt") message.
// It lives for the process lifetime only.
type State struct {
	mu        sync.RWMutex
	admins    map[string]struct{}
	broadcast string
}

// NewState creates the admin state seeded from configuration
func NewState(adminIDs []string, broadcast string) *State {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}
	return &State{
		admins:    admins,
		broadcast: broadcast,
	}
}

// IsAdmin checks if a user is in the admin set
func (s *State) IsAdmin(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok
}

// AddAdmin adds a user to the admin set
func (s *State) AddAdmin(userID string) error {
	if userID == "" {
		return apperrors.ErrEmptyAdminID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[userID]; ok {
		return fmt.Errorf("add admin %s: %w", userID, apperrors.ErrAlreadyAdmin)
	}
	s.admins[userID] = struct{}{}
	return nil
}

// RemoveAdmin removes a user from the admin set
func (s *State) RemoveAdmin(userID string) error {
	if userID == "" {
		return apperrors.ErrEmptyAdminID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[userID]; !ok {
		return fmt.Errorf("remove admin %s: %w", userID, apperrors.ErrNotAdmin)
	}
	delete(s.admins, userID)
	return nil
}

// Admins returns the admin set, sorted
func (s *State) Admins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.admins))
	for id := range s.admins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast returns the current pt message
func (s *State) Broadcast() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broadcast
}

// SetBroadcast replaces the pt message
func (s *State) SetBroadcast(msg string) error {
	if msg == "" {
		return apperrors.ErrEmptyBroadcast
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = msg
	return nil
}
