package goIdentity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryTokenStore defines a public type used by goIdentity APIs.
//
// MemoryTokenStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// It is the default [TokenRepository]. The value index only ever holds
// Active tokens; MarkStatus removes the entry in the same critical section
// that flips the status, so a revoked value can never resolve again.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	byID    map[string]*Token
	byValue map[string]string
	byUser  map[string]map[string]struct{}
}

// NewMemoryTokenStore describes the newmemorytokenstore operation and its observable behavior.
//
// NewMemoryTokenStore may return an error when input validation, dependency calls, or security checks fail.
// NewMemoryTokenStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		byID:    make(map[string]*Token),
		byValue: make(map[string]string),
		byUser:  make(map[string]map[string]struct{}),
	}
}

// Insert describes the insert operation and its observable behavior.
//
// Insert may return an error when input validation, dependency calls, or security checks fail.
// Insert does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) Insert(ctx context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return errors.New("token id collision")
	}
	if _, exists := s.byValue[t.Value]; exists {
		return errors.New("token value collision")
	}

	s.byID[t.ID] = t.Clone()
	if t.Status == StatusActive {
		s.byValue[t.Value] = t.ID
	}

	ids, ok := s.byUser[t.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[t.UserID] = ids
	}
	ids[t.ID] = struct{}{}
	return nil
}

// ByID describes the byid operation and its observable behavior.
//
// ByID may return an error when input validation, dependency calls, or security checks fail.
// ByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) ByID(ctx context.Context, id string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t.Clone(), nil
}

// ByValue describes the byvalue operation and its observable behavior.
//
// ByValue may return an error when input validation, dependency calls, or security checks fail.
// ByValue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) ByValue(ctx context.Context, value string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byValue[value]
	if !ok {
		return nil, ErrTokenNotFound
	}
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t.Clone(), nil
}

// ConsumeUse describes the consumeuse operation and its observable behavior.
//
// ConsumeUse may return an error when input validation, dependency calls, or security checks fail.
// ConsumeUse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) ConsumeUse(ctx context.Context, id string, max int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return 0, ErrTokenNotFound
	}
	if t.Status != StatusActive {
		return t.UseCount, ErrTokenNotActive
	}
	if max > 0 && t.UseCount >= max {
		return t.UseCount, ErrTokenUseExceeded
	}

	t.UseCount++
	t.LastUsedAt = now
	return t.UseCount, nil
}

// MarkStatus describes the markstatus operation and its observable behavior.
//
// MarkStatus may return an error when input validation, dependency calls, or security checks fail.
// MarkStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) MarkStatus(ctx context.Context, id string, status TokenStatus, now time.Time) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if t.Status != StatusActive {
		return t.Clone(), ErrTokenNotActive
	}

	t.Status = status
	delete(s.byValue, t.Value)
	return t.Clone(), nil
}

// ForUser describes the foruser operation and its observable behavior.
//
// ForUser may return an error when input validation, dependency calls, or security checks fail.
// ForUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) ForUser(ctx context.Context, userID string, kind *TokenKind, status *TokenStatus) ([]*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]*Token, 0, len(ids))
	for id := range ids {
		t, ok := s.byID[id]
		if !ok {
			continue
		}
		if kind != nil && t.Kind != *kind {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

// ReapExpired describes the reapexpired operation and its observable behavior.
//
// ReapExpired may return an error when input validation, dependency calls, or security checks fail.
// ReapExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) ReapExpired(ctx context.Context, now time.Time, limit int) ([]*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Token
	for _, t := range s.byID {
		if limit > 0 && len(expired) >= limit {
			break
		}
		if t.Status != StatusActive {
			continue
		}
		pastExpiry := !t.ExpiresAt.After(now)
		usedUp := t.MaxUses > 0 && t.UseCount >= t.MaxUses
		if !pastExpiry && !usedUp {
			continue
		}

		t.Status = StatusExpired
		delete(s.byValue, t.Value)
		expired = append(expired, t.Clone())
	}
	return expired, nil
}

// Stats describes the stats operation and its observable behavior.
//
// Stats may return an error when input validation, dependency calls, or security checks fail.
// Stats does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryTokenStore) Stats(ctx context.Context, now time.Time, soonWindow time.Duration) (TokenStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := TokenStats{
		ByKind:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	soon := now.Add(soonWindow)

	for _, t := range s.byID {
		stats.Total++
		stats.ByKind[t.Kind.String()]++
		stats.ByStatus[t.Status.String()]++

		switch t.Status {
		case StatusActive:
			stats.Active++
			if soonWindow > 0 && t.ExpiresAt.After(now) && !t.ExpiresAt.After(soon) {
				stats.ExpiringSoon++
			}
		case StatusExpired:
			stats.Expired++
		}
	}
	return stats, nil
}
