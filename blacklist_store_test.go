package goIdentity

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBlacklistStoreAddAndContains(t *testing.T) {
	s := NewMemoryBlacklistStore()
	ctx := context.Background()
	now := time.Now()

	entry := &BlacklistEntry{
		TokenID:   "t1",
		ValueHash: "hash-1",
		RevokedAt: now,
		Actor:     "admin",
		Reason:    "compromised",
		ExpiresAt: now.Add(time.Hour),
	}
	if err := s.Add(ctx, entry); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := s.Contains(ctx, "t1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !ok {
		t.Error("expected t1 to be blacklisted")
	}

	ok, err = s.ContainsHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("ContainsHash failed: %v", err)
	}
	if !ok {
		t.Error("expected hash-1 to be blacklisted")
	}

	if ok, _ := s.Contains(ctx, "other"); ok {
		t.Error("unknown token id reported blacklisted")
	}
	if ok, _ := s.ContainsHash(ctx, "other"); ok {
		t.Error("unknown hash reported blacklisted")
	}
}

func TestMemoryBlacklistStoreOverwriteReplacesHash(t *testing.T) {
	s := NewMemoryBlacklistStore()
	ctx := context.Background()
	now := time.Now()

	if err := s.Add(ctx, &BlacklistEntry{TokenID: "t1", ValueHash: "old-hash", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, &BlacklistEntry{TokenID: "t1", ValueHash: "new-hash", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}

	if ok, _ := s.ContainsHash(ctx, "old-hash"); ok {
		t.Error("stale hash index entry survived overwrite")
	}
	if ok, _ := s.ContainsHash(ctx, "new-hash"); !ok {
		t.Error("replacement hash missing")
	}
	size, err := s.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("expected size 1, got %d", size)
	}
}

func TestMemoryBlacklistStoreReap(t *testing.T) {
	s := NewMemoryBlacklistStore()
	ctx := context.Background()
	now := time.Now()

	entries := []*BlacklistEntry{
		{TokenID: "kept", ValueHash: "h-kept", ExpiresAt: now.Add(time.Hour)},
		{TokenID: "gone1", ValueHash: "h-gone1", ExpiresAt: now.Add(-time.Minute)},
		{TokenID: "gone2", ValueHash: "h-gone2", ExpiresAt: now.Add(-time.Hour)},
	}
	for _, e := range entries {
		if err := s.Add(ctx, e); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	removed, err := s.Reap(ctx, now, 0)
	if err != nil {
		t.Fatalf("Reap failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	if ok, _ := s.Contains(ctx, "kept"); !ok {
		t.Error("unexpired entry must survive the reap")
	}
	if ok, _ := s.Contains(ctx, "gone1"); ok {
		t.Error("expired entry survived the reap")
	}
	if ok, _ := s.ContainsHash(ctx, "h-gone2"); ok {
		t.Error("hash index survived for reaped entry")
	}

	size, err := s.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("expected size 1 after reap, got %d", size)
	}
}

func TestMemoryBlacklistStoreReapHonorsLimit(t *testing.T) {
	s := NewMemoryBlacklistStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 10; i++ {
		e := &BlacklistEntry{
			TokenID:   "t" + string(rune('a'+i)),
			ValueHash: "h" + string(rune('a'+i)),
			ExpiresAt: now.Add(-time.Minute),
		}
		if err := s.Add(ctx, e); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	removed, err := s.Reap(ctx, now, 3)
	if err != nil {
		t.Fatalf("Reap failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected limit of 3 removed, got %d", removed)
	}
}
