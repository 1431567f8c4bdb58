package goIdentity

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore defines a public type used by goIdentity APIs.
//
// MemorySessionStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// It is the default [SessionRepository]. Revoked sessions stay queryable so
// validation can answer session_revoked; reaped expired sessions are removed
// entirely.
type MemorySessionStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]map[string]struct{}
}

// NewMemorySessionStore describes the newmemorysessionstore operation and its observable behavior.
//
// NewMemorySessionStore may return an error when input validation, dependency calls, or security checks fail.
// NewMemorySessionStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byID:   make(map[string]*Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) Save(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.byID[sess.ID] = &cp

	ids, ok := s.byUser[sess.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[sess.UserID] = ids
	}
	ids[sess.ID] = struct{}{}
	return nil
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// Touch describes the touch operation and its observable behavior.
//
// Touch may return an error when input validation, dependency calls, or security checks fail.
// Touch does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastActivity = at
	return nil
}

// SetInactive describes the setinactive operation and its observable behavior.
//
// SetInactive may return an error when input validation, dependency calls, or security checks fail.
// SetInactive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) SetInactive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Active = false
	return nil
}

// Delete describes the delete operation and its observable behavior.
//
// Delete may return an error when input validation, dependency calls, or security checks fail.
// Delete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(id)
	return nil
}

// DeleteAllForUser describes the deleteallforuser operation and its observable behavior.
//
// DeleteAllForUser may return an error when input validation, dependency calls, or security checks fail.
// DeleteAllForUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	count := 0
	for id := range ids {
		if _, ok := s.byID[id]; ok {
			delete(s.byID, id)
			count++
		}
	}
	delete(s.byUser, userID)
	return count, nil
}

// ActiveCount describes the activecount operation and its observable behavior.
//
// ActiveCount may return an error when input validation, dependency calls, or security checks fail.
// ActiveCount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) ActiveCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sess := range s.byID {
		if sess.Active {
			count++
		}
	}
	return count, nil
}

// ReapExpired describes the reapexpired operation and its observable behavior.
//
// ReapExpired may return an error when input validation, dependency calls, or security checks fail.
// ReapExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemorySessionStore) ReapExpired(ctx context.Context, now time.Time, limit int) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Session
	for id, sess := range s.byID {
		if limit > 0 && len(expired) >= limit {
			break
		}
		if sess.ExpiresAt.After(now) {
			continue
		}
		if sess.Active {
			sess.Active = false
			cp := *sess
			expired = append(expired, &cp)
		}
		s.deleteLocked(id)
	}
	return expired, nil
}

func (s *MemorySessionStore) deleteLocked(id string) {
	sess, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if ids, ok := s.byUser[sess.UserID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
}
