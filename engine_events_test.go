package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// newObservedEngine wires a global sink and enabled counters so tests can
// assert on the full event stream of an operation sequence.
func newObservedEngine(t *testing.T) (*Engine, *testClock, *ChannelSink) {
	t.Helper()

	clock := newTestClock()
	sink := NewChannelSink(64)
	engine, err := New().
		WithConfig(testConfig()).
		WithClock(clock.Now).
		WithEventSink(sink).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine, clock, sink
}

func TestOperationEventsCarryIdentity(t *testing.T) {
	engine, clock, sink := newObservedEngine(t)
	ctx := context.Background()

	id := createTestUser(t, engine, "alice", RoleDeveloper)
	event := waitEvent(t, sink, EventUserCreated)
	if event.UserID != id || !event.Success || event.Metadata["role"] != "developer" {
		t.Fatalf("unexpected user_created event: %+v", event)
	}
	if !event.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected the engine clock on the event, got %v", event.Timestamp)
	}

	res := loginTestUser(t, engine, "alice")
	created := waitEvent(t, sink, EventSessionCreated)
	if created.SessionID != res.SessionID || created.Metadata["method"] != "password" {
		t.Fatalf("unexpected session_created event: %+v", created)
	}
	login := waitEvent(t, sink, EventLogin)
	if login.SessionID != res.SessionID || login.TokenID == "" {
		t.Fatalf("unexpected login event: %+v", login)
	}

	key, err := engine.CreateToken(ctx, TokenRequest{Kind: KindAPIKey, UserID: id})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	minted := waitEvent(t, sink, EventTokenCreated)
	if minted.TokenID != key.ID || minted.Metadata["kind"] != "api_key" {
		t.Fatalf("unexpected token_created event: %+v", minted)
	}

	if _, err := engine.ValidateToken(ctx, key.Value, ValidateRequest{Resource: "/v1/things"}); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	used := waitEvent(t, sink, EventTokenUsed)
	if used.TokenID != key.ID || used.Metadata["resource"] != "/v1/things" {
		t.Fatalf("unexpected token_used event: %+v", used)
	}

	if err := engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	out := waitEvent(t, sink, EventLogout)
	if out.SessionID != res.SessionID || out.UserID != id {
		t.Fatalf("unexpected logout event: %+v", out)
	}
}

func TestLoginFailureEventNamesTrueCause(t *testing.T) {
	engine, _, sink := newObservedEngine(t)
	ctx := context.Background()

	createTestUser(t, engine, "alice", RoleDeveloper)

	_, err := engine.Authenticate(ctx, MethodPassword, Credentials{Username: "alice", Password: "wrong-guess"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	event := waitEvent(t, sink, EventLoginFailed)
	if event.Error != "invalid_credentials" || event.Metadata["username"] != "alice" || event.Success {
		t.Fatalf("unexpected login_failed event: %+v", event)
	}

	// The surface collapses to generic credentials; the event still names
	// the disabled account.
	bob := createTestUser(t, engine, "bob", RoleDeveloper)
	if err := engine.DeactivateUser(ctx, bob); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}
	if _, err := engine.Authenticate(ctx, MethodPassword, Credentials{Username: "bob", Password: testPassword}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected generic surface, got %v", err)
	}
	event = waitEvent(t, sink, EventLoginFailed)
	if event.Error != "account_disabled" || event.UserID != bob {
		t.Fatalf("unexpected login_failed event: %+v", event)
	}
}

func TestLockoutEventsAndCode(t *testing.T) {
	engine, _, sink := newObservedEngine(t)
	ctx := context.Background()

	createTestUser(t, engine, "carol", RoleDeveloper)
	for i := 0; i < 5; i++ {
		if _, err := engine.Authenticate(ctx, MethodPassword, Credentials{Username: "carol", Password: "wrong-guess"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	locked := waitEvent(t, sink, EventUserLocked)
	if locked.Metadata["locked_until"] == "" {
		t.Fatalf("expected a lock deadline on the event, got %+v", locked)
	}

	// Even the right password is refused inside the window, with the lock
	// named on both the surface and the event.
	if _, err := engine.Authenticate(ctx, MethodPassword, Credentials{Username: "carol", Password: testPassword}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	event := waitEvent(t, sink, EventLoginFailed)
	if event.Error != "account_locked" {
		t.Fatalf("expected account_locked code, got %+v", event)
	}
}

func TestEventClientIPFromContext(t *testing.T) {
	engine, _, sink := newObservedEngine(t)
	ctx := WithClientIP(context.Background(), "198.51.100.7")

	createTestUser(t, engine, "dora", RoleDeveloper)
	res, err := engine.Authenticate(ctx, MethodPassword, Credentials{Username: "dora", Password: testPassword})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	login := waitEvent(t, sink, EventLogin)
	if login.IP != "198.51.100.7" {
		t.Fatalf("expected caller IP on the event, got %q", login.IP)
	}

	s, err := engine.ValidateSession(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if s.ClientIP != "198.51.100.7" {
		t.Fatalf("expected caller IP on the session, got %q", s.ClientIP)
	}
}

func TestMetricsSnapshotCounts(t *testing.T) {
	engine, _, _ := newObservedEngine(t)
	ctx := context.Background()

	id := createTestUser(t, engine, "ed", RoleDeveloper)
	loginTestUser(t, engine, "ed")
	if _, err := engine.Authenticate(ctx, MethodPassword, Credentials{Username: "ed", Password: "wrong-guess"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	key, err := engine.CreateToken(ctx, TokenRequest{Kind: KindAPIKey, UserID: id})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if _, err := engine.ValidateToken(ctx, key.Value, ValidateRequest{}); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if _, err := engine.ValidateToken(ctx, "no-such-value", ValidateRequest{}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	if ok, err := engine.RevokeToken(ctx, key.ID, "done", "admin"); err != nil || !ok {
		t.Fatalf("RevokeToken = %v, %v", ok, err)
	}

	snap := engine.MetricsSnapshot()
	expect := map[MetricID]uint64{
		MetricUserCreated:     1,
		MetricLoginSuccess:    1,
		MetricSessionCreated:  1,
		MetricLoginFailure:    1,
		MetricTokenCreated:    3, // login pair plus the API key
		MetricValidateSuccess: 1,
		MetricValidateFailure: 1,
		MetricTokenRevoked:    1,
	}
	for id, want := range expect {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("counter %d: expected %d, got %d", id, want, got)
		}
	}
	if len(snap.Histograms) != 0 {
		t.Fatalf("expected no histograms without latency enabled, got %v", snap.Histograms)
	}
}

func TestMetricsDisabledByDefault(t *testing.T) {
	engine, _ := newTestEngine(t)

	createTestUser(t, engine, "faye", RoleDeveloper)
	loginTestUser(t, engine, "faye")

	snap := engine.MetricsSnapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("expected an empty snapshot with metrics disabled, got %v", snap.Counters)
	}
	if engine.EventsDropped() != 0 {
		t.Fatalf("expected no dropped events, got %d", engine.EventsDropped())
	}
}

func TestValidateLatencyHistogram(t *testing.T) {
	clock := newTestClock()
	engine, err := New().
		WithConfig(testConfig()).
		WithClock(clock.Now).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	ctx := context.Background()

	id := createTestUser(t, engine, "gus", RoleDeveloper)
	key, err := engine.CreateToken(ctx, TokenRequest{Kind: KindAPIKey, UserID: id})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := engine.ValidateToken(ctx, key.Value, ValidateRequest{}); err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
	}

	buckets := engine.MetricsSnapshot().Histograms[MetricValidateLatency]
	if buckets == nil {
		t.Fatal("expected a validate latency histogram")
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 2 {
		t.Fatalf("expected 2 observations, got %d", total)
	}
}

func TestErrorCodesAreStable(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidCredentials, "invalid_credentials"},
		{fmt.Errorf("request: %w", ErrScopeInsufficient), "scope_insufficient"},
		{ErrEngineClosed, "engine_closed"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range cases {
		if got := errorCode(tc.err); got != tc.want {
			t.Fatalf("errorCode(%v) = %q, expected %q", tc.err, got, tc.want)
		}
	}
}
