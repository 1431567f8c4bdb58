package goIdentity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryUserStore defines a public type used by goIdentity APIs.
//
// MemoryUserStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// It is the default [UserRepository] when no other implementation is wired
// into the builder. Username and email indexes are case-insensitive.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[string]*User
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryUserStore describes the newmemoryuserstore operation and its observable behavior.
//
// NewMemoryUserStore may return an error when input validation, dependency calls, or security checks fail.
// NewMemoryUserStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usernameKey := normalizeIndexKey(u.Username)
	emailKey := normalizeIndexKey(u.Email)

	if _, taken := s.byUsername[usernameKey]; taken {
		return ErrDuplicateUsername
	}
	if _, taken := s.byEmail[emailKey]; taken {
		return ErrDuplicateEmail
	}

	cp := *u
	s.byID[u.ID] = &cp
	s.byUsername[usernameKey] = u.ID
	s.byEmail[emailKey] = u.ID
	return nil
}

// ByID describes the byid operation and its observable behavior.
//
// ByID may return an error when input validation, dependency calls, or security checks fail.
// ByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) ByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneLocked(s.byID[id])
}

// ByUsername describes the byusername operation and its observable behavior.
//
// ByUsername may return an error when input validation, dependency calls, or security checks fail.
// ByUsername does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) ByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneLocked(s.byID[s.byUsername[normalizeIndexKey(username)]])
}

// ByEmail describes the byemail operation and its observable behavior.
//
// ByEmail may return an error when input validation, dependency calls, or security checks fail.
// ByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) ByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneLocked(s.byID[s.byEmail[normalizeIndexKey(email)]])
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpdatePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.mutate(id, func(u *User) {
		u.PasswordHash = hash
	})
}

// SetMFA describes the setmfa operation and its observable behavior.
//
// SetMFA may return an error when input validation, dependency calls, or security checks fail.
// SetMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) SetMFA(ctx context.Context, id string, enabled bool, secret string) error {
	return s.mutate(id, func(u *User) {
		u.MFAEnabled = enabled
		u.MFASecret = secret
	})
}

// SetActive describes the setactive operation and its observable behavior.
//
// SetActive may return an error when input validation, dependency calls, or security checks fail.
// SetActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.mutate(id, func(u *User) {
		u.Active = active
	})
}

// RecordLogin describes the recordlogin operation and its observable behavior.
//
// RecordLogin may return an error when input validation, dependency calls, or security checks fail.
// RecordLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return s.mutate(id, func(u *User) {
		u.LastLoginAt = at
	})
}

// RecordFailure describes the recordfailure operation and its observable behavior.
//
// RecordFailure may return an error when input validation, dependency calls, or security checks fail.
// RecordFailure does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) RecordFailure(ctx context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return 0, time.Time{}, ErrUserNotFound
	}

	u.FailedAttempts++
	if max > 0 && u.FailedAttempts >= max {
		u.LockedUntil = now.Add(lockFor)
	}
	return u.FailedAttempts, u.LockedUntil, nil
}

// ResetAttempts describes the resetattempts operation and its observable behavior.
//
// ResetAttempts may return an error when input validation, dependency calls, or security checks fail.
// ResetAttempts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryUserStore) ResetAttempts(ctx context.Context, id string) error {
	return s.mutate(id, func(u *User) {
		u.FailedAttempts = 0
		u.LockedUntil = time.Time{}
	})
}

func (s *MemoryUserStore) mutate(id string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

func (s *MemoryUserStore) cloneLocked(u *User) (*User, error) {
	if u == nil {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func normalizeIndexKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
