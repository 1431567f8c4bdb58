package goIdentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedUser(t *testing.T, s *MemoryUserStore, id, username, email string) *User {
	t.Helper()
	u := &User{
		ID:           id,
		Username:     username,
		Email:        email,
		Role:         RoleViewer,
		PasswordHash: "$argon2id$stub",
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := s.Create(context.Background(), u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return u
}

func TestMemoryUserStoreLookups(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	seedUser(t, s, "u1", "Alice", "Alice@Example.com")

	byID, err := s.ByID(ctx, "u1")
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if byID.Username != "Alice" {
		t.Errorf("expected username Alice, got %q", byID.Username)
	}

	// Username and email lookups are case-insensitive.
	if _, err := s.ByUsername(ctx, "alice"); err != nil {
		t.Errorf("lowercase username lookup failed: %v", err)
	}
	if _, err := s.ByEmail(ctx, "ALICE@EXAMPLE.COM"); err != nil {
		t.Errorf("uppercase email lookup failed: %v", err)
	}

	if _, err := s.ByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.ByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryUserStoreReturnsCopies(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice", "alice@example.com")

	got, err := s.ByID(ctx, "u1")
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	got.PasswordHash = "tampered"

	again, err := s.ByID(ctx, "u1")
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if again.PasswordHash == "tampered" {
		t.Error("store returned a live pointer instead of a copy")
	}
}

func TestMemoryUserStoreDuplicates(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice", "alice@example.com")

	dupName := &User{ID: "u2", Username: "ALICE", Email: "other@example.com"}
	if err := s.Create(ctx, dupName); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}

	dupMail := &User{ID: "u3", Username: "bob", Email: "Alice@example.com"}
	if err := s.Create(ctx, dupMail); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}

	// A failed create must not claim either index.
	ok := &User{ID: "u4", Username: "bob", Email: "other@example.com"}
	if err := s.Create(ctx, ok); err != nil {
		t.Errorf("create after rejected duplicates failed: %v", err)
	}
}

func TestMemoryUserStoreMutations(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice", "alice@example.com")

	if err := s.UpdatePasswordHash(ctx, "u1", "$argon2id$new"); err != nil {
		t.Fatalf("UpdatePasswordHash failed: %v", err)
	}
	if err := s.SetMFA(ctx, "u1", true, "JBSWY3DP"); err != nil {
		t.Fatalf("SetMFA failed: %v", err)
	}
	if err := s.SetActive(ctx, "u1", false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	at := time.Now().Truncate(time.Second)
	if err := s.RecordLogin(ctx, "u1", at); err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}

	u, err := s.ByID(ctx, "u1")
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if u.PasswordHash != "$argon2id$new" {
		t.Error("password hash not updated")
	}
	if !u.MFAEnabled || u.MFASecret != "JBSWY3DP" {
		t.Error("mfa state not updated")
	}
	if u.Active {
		t.Error("active flag not cleared")
	}
	if !u.LastLoginAt.Equal(at) {
		t.Errorf("expected LastLoginAt %v, got %v", at, u.LastLoginAt)
	}

	if err := s.UpdatePasswordHash(ctx, "missing", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryUserStoreFailureLockout(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice", "alice@example.com")

	now := time.Now()
	lockFor := 15 * time.Minute

	for i := 1; i <= 2; i++ {
		attempts, lockedUntil, err := s.RecordFailure(ctx, "u1", now, 3, lockFor)
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if attempts != i {
			t.Errorf("expected %d attempts, got %d", i, attempts)
		}
		if !lockedUntil.IsZero() {
			t.Errorf("locked before reaching the threshold at attempt %d", i)
		}
	}

	attempts, lockedUntil, err := s.RecordFailure(ctx, "u1", now, 3, lockFor)
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !lockedUntil.Equal(now.Add(lockFor)) {
		t.Errorf("expected lock until %v, got %v", now.Add(lockFor), lockedUntil)
	}

	if err := s.ResetAttempts(ctx, "u1"); err != nil {
		t.Fatalf("ResetAttempts failed: %v", err)
	}
	u, err := s.ByID(ctx, "u1")
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if u.FailedAttempts != 0 || !u.LockedUntil.IsZero() {
		t.Errorf("reset left attempts=%d lockedUntil=%v", u.FailedAttempts, u.LockedUntil)
	}
}

func TestMemoryUserStoreZeroMaxNeverLocks(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice", "alice@example.com")

	now := time.Now()
	for i := 0; i < 50; i++ {
		_, lockedUntil, err := s.RecordFailure(ctx, "u1", now, 0, time.Hour)
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if !lockedUntil.IsZero() {
			t.Fatal("max 0 must disable lockout")
		}
	}
}
