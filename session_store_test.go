package goIdentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedSession(t *testing.T, s *MemorySessionStore, id, userID string, expiresAt time.Time) *Session {
	t.Helper()
	sess := &Session{
		ID:           id,
		UserID:       userID,
		Method:       MethodPassword,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		ExpiresAt:    expiresAt,
		Active:       true,
	}
	if err := s.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return sess
}

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()
	seedSession(t, s, "s1", "u1", time.Now().Add(time.Hour))

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" || !got.Active {
		t.Errorf("unexpected session: %+v", got)
	}

	got.UserID = "tampered"
	again, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.UserID == "tampered" {
		t.Error("store returned a live pointer instead of a copy")
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemorySessionStoreTouch(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()
	seedSession(t, s, "s1", "u1", time.Now().Add(time.Hour))

	at := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	if err := s.Touch(ctx, "s1", at); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.LastActivity.Equal(at) {
		t.Errorf("expected LastActivity %v, got %v", at, got.LastActivity)
	}

	if err := s.Touch(ctx, "missing", at); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemorySessionStoreSetInactiveKeepsRecord(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()
	seedSession(t, s, "s1", "u1", time.Now().Add(time.Hour))

	if err := s.SetInactive(ctx, "s1"); err != nil {
		t.Fatalf("SetInactive failed: %v", err)
	}

	// The record survives so a revoked session stays distinguishable
	// from one that never existed.
	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get after SetInactive failed: %v", err)
	}
	if got.Active {
		t.Error("session still active after SetInactive")
	}

	count, err := s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 active sessions, got %d", count)
	}
}

func TestMemorySessionStoreDeleteAllForUser(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()
	seedSession(t, s, "s1", "u1", time.Now().Add(time.Hour))
	seedSession(t, s, "s2", "u1", time.Now().Add(time.Hour))
	seedSession(t, s, "s3", "u2", time.Now().Add(time.Hour))

	n, err := s.DeleteAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteAllForUser failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("s1 should be gone, got %v", err)
	}
	if _, err := s.Get(ctx, "s3"); err != nil {
		t.Errorf("s3 belongs to another user and must survive: %v", err)
	}
}

func TestMemorySessionStoreReapExpired(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()
	now := time.Now()

	seedSession(t, s, "live", "u1", now.Add(time.Hour))
	seedSession(t, s, "dead1", "u1", now.Add(-time.Minute))
	seedSession(t, s, "dead2", "u2", now.Add(-time.Hour))

	reaped, err := s.ReapExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("ReapExpired failed: %v", err)
	}
	if len(reaped) != 2 {
		t.Fatalf("expected 2 reaped sessions, got %d", len(reaped))
	}
	for _, r := range reaped {
		if r.Active {
			t.Errorf("reaped session %s reported active", r.ID)
		}
	}

	// Reaped sessions are removed outright; only revocation keeps records.
	if _, err := s.Get(ctx, "dead1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for reaped session, got %v", err)
	}
	if _, err := s.Get(ctx, "live"); err != nil {
		t.Errorf("live session must survive the sweep: %v", err)
	}
}

func TestMemorySessionStoreReapHonorsLimit(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 10; i++ {
		seedSession(t, s, "s"+string(rune('a'+i)), "u1", now.Add(-time.Minute))
	}

	reaped, err := s.ReapExpired(ctx, now, 4)
	if err != nil {
		t.Fatalf("ReapExpired failed: %v", err)
	}
	if len(reaped) != 4 {
		t.Errorf("expected limit of 4 reaped sessions, got %d", len(reaped))
	}
}
