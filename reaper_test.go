package goIdentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReaperSweepReclaims(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	sink := NewChannelSink(16)

	engine, err := New().
		WithConfig(testConfig()).
		WithClock(clock.Now).
		WithEventSink(sink, EventReaperSweep).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	id := createTestUser(t, engine, "alice", RoleDeveloper)
	res := loginTestUser(t, engine, "alice")

	// A short-lived token that will age out, and a revoked one whose
	// blacklist entry can be purged once the original expiry passes.
	temp, err := engine.CreateToken(ctx, TokenRequest{Kind: KindTemporary, UserID: id})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	doomed, err := engine.CreateToken(ctx, TokenRequest{Kind: KindTemporary, UserID: id})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if ok, err := engine.RevokeToken(ctx, doomed.ID, "cleanup", "admin"); err != nil || !ok {
		t.Fatalf("RevokeToken = %v, %v", ok, err)
	}

	// Past the 24h session lifetime, the 1h bearer, the 5m temporary
	// tokens, and the blacklist entry's retention. The 30d refresh token
	// must survive.
	clock.Advance(25 * time.Hour)
	engine.reaper.sweep()

	event := waitEvent(t, sink, EventReaperSweep)
	if event.Metadata["sessions_expired"] != "1" {
		t.Fatalf("expected 1 reaped session, got %q", event.Metadata["sessions_expired"])
	}
	if event.Metadata["tokens_expired"] != "2" {
		t.Fatalf("expected 2 reaped tokens, got %q", event.Metadata["tokens_expired"])
	}
	if event.Metadata["blacklist_purged"] != "1" {
		t.Fatalf("expected 1 purged blacklist entry, got %q", event.Metadata["blacklist_purged"])
	}

	// Reaped sessions are gone entirely, not just inactive.
	if _, err := engine.ValidateSession(ctx, res.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	record, err := engine.GetToken(ctx, temp.ID)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if record.Status != StatusExpired {
		t.Fatalf("expected expired temporary token, got %s", record.Status)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ActiveSessions != 0 || stats.BlacklistSize != 0 {
		t.Fatalf("unexpected post-sweep stats: %+v", stats)
	}
	if stats.ExpiredTokens != 2 || stats.ActiveTokens != 1 {
		t.Fatalf("unexpected token counts: %+v", stats)
	}

	// A second pass over the same estate finds nothing.
	engine.reaper.sweep()
	event = waitEvent(t, sink, EventReaperSweep)
	if event.Metadata["sessions_expired"] != "0" || event.Metadata["tokens_expired"] != "0" || event.Metadata["blacklist_purged"] != "0" {
		t.Fatalf("expected an empty second sweep, got %v", event.Metadata)
	}
}

func TestReaperSweepExpiresUseExhausted(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	id := createTestUser(t, engine, "bob", RoleDeveloper)
	tok, err := engine.CreateToken(ctx, TokenRequest{Kind: KindTemporary, UserID: id, MaxUses: 1})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if _, err := engine.ValidateToken(ctx, tok.Value, ValidateRequest{}); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	// Fully consumed but not yet past its expiry; the sweep retires it
	// anyway so the live index does not accumulate spent tokens.
	engine.reaper.sweep()

	record, err := engine.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if record.Status != StatusExpired {
		t.Fatalf("expected spent token to be retired, got %s", record.Status)
	}
}

func TestReaperStopIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.reaper.stop()
	engine.reaper.stop()
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
