package goIdentity

import (
	"context"
	"sync"
	"testing"
	"time"
)

const testPassword = "Sup3r$ecret!"

// testClock is a hand-driven clock shared by the engine and the assertions,
// so expiry tests never sleep.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Signing.Secret = []byte("0123456789abcdef0123456789abcdef")

	// Floor-cost hashing keeps the suite fast without changing code paths.
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.PoolSize = 2
	cfg.Password.BcryptCost = 4

	// Tests drive sweeps by hand.
	cfg.Reaper.Interval = time.Hour
	cfg.Reaper.SweepTimeout = time.Second

	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *testClock) {
	t.Helper()

	clock := newTestClock()
	engine, err := New().
		WithConfig(testConfig()).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	return engine, clock
}

func createTestUser(t *testing.T, e *Engine, username string, role Role) string {
	t.Helper()

	id, err := e.CreateUser(context.Background(), username, username+"@example.com", testPassword, role)
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return id
}

func loginTestUser(t *testing.T, e *Engine, username string) *AuthResult {
	t.Helper()

	res, err := e.Authenticate(context.Background(), MethodPassword, Credentials{
		Username: username,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Authenticate(%s) failed: %v", username, err)
	}
	if res.Status != AuthSuccess {
		t.Fatalf("expected AuthSuccess, got %s", res.Status)
	}
	return res
}

// waitEvent drains the sink until an event of the wanted type arrives or the
// deadline passes. Dispatch is asynchronous, so assertions go through here.
func waitEvent(t *testing.T, sink *ChannelSink, want EventType) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}
