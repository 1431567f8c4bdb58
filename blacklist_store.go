package goIdentity

import (
	"context"
	"sync"
	"time"
)

// MemoryBlacklistStore defines a public type used by goIdentity APIs.
//
// MemoryBlacklistStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// It is the default [BlacklistRepository]. Lookups by token id and by value
// hash are both O(1); entries stay until Reap removes them based on the
// original expiry recorded at revocation time.
type MemoryBlacklistStore struct {
	mu      sync.RWMutex
	byToken map[string]*BlacklistEntry
	byHash  map[string]string
}

// NewMemoryBlacklistStore describes the newmemoryblackliststore operation and its observable behavior.
//
// NewMemoryBlacklistStore may return an error when input validation, dependency calls, or security checks fail.
// NewMemoryBlacklistStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryBlacklistStore() *MemoryBlacklistStore {
	return &MemoryBlacklistStore{
		byToken: make(map[string]*BlacklistEntry),
		byHash:  make(map[string]string),
	}
}

// Add describes the add operation and its observable behavior.
//
// Add may return an error when input validation, dependency calls, or security checks fail.
// Add does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryBlacklistStore) Add(ctx context.Context, e *BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byToken[e.TokenID]; ok && prev.ValueHash != e.ValueHash {
		delete(s.byHash, prev.ValueHash)
	}

	cp := *e
	s.byToken[e.TokenID] = &cp
	if e.ValueHash != "" {
		s.byHash[e.ValueHash] = e.TokenID
	}
	return nil
}

// Contains describes the contains operation and its observable behavior.
//
// Contains may return an error when input validation, dependency calls, or security checks fail.
// Contains does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryBlacklistStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byToken[tokenID]
	return ok, nil
}

// ContainsHash describes the containshash operation and its observable behavior.
//
// ContainsHash may return an error when input validation, dependency calls, or security checks fail.
// ContainsHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryBlacklistStore) ContainsHash(ctx context.Context, valueHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byHash[valueHash]
	return ok, nil
}

// Reap describes the reap operation and its observable behavior.
//
// Reap may return an error when input validation, dependency calls, or security checks fail.
// Reap does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryBlacklistStore) Reap(ctx context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.byToken {
		if limit > 0 && removed >= limit {
			break
		}
		if e.ExpiresAt.After(now) {
			continue
		}
		delete(s.byToken, id)
		delete(s.byHash, e.ValueHash)
		removed++
	}
	return removed, nil
}

// Size describes the size operation and its observable behavior.
//
// Size may return an error when input validation, dependency calls, or security checks fail.
// Size does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryBlacklistStore) Size(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToken), nil
}
