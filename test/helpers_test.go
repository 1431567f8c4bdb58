//go:build integration
// +build integration

package test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/redistore"
)

const integrationPassword = "Int3gr@tion-Pass"

var integrationSecret = []byte("integration-suite-signing-secret")

// integrationConfig keeps hashing at floor cost so the suite stays fast
// without changing the code paths under test.
func integrationConfig() goIdentity.Config {
	cfg := goIdentity.DefaultConfig()

	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.PoolSize = 2
	cfg.Password.BcryptCost = 4

	cfg.Reaper.Interval = time.Hour
	cfg.Reaper.SweepTimeout = time.Second

	return cfg
}

// newIntegrationEngine builds an engine over miniredis with all four
// Redis-backed repositories wired in.
func newIntegrationEngine(t *testing.T) (*goIdentity.Engine, redis.UniversalClient, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	stores := redistore.Open(redistore.Options{Client: rdb, Prefix: "gi"})
	engine, err := goIdentity.New().
		WithConfig(integrationConfig()).
		WithSigningSecret(integrationSecret).
		WithUserRepository(stores.Users).
		WithSessionRepository(stores.Sessions).
		WithTokenRepository(stores.Tokens).
		WithBlacklistRepository(stores.Blacklist).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, rdb, func() {
		_ = engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func createIntegrationUser(t *testing.T, engine *goIdentity.Engine, username string, role goIdentity.Role) string {
	t.Helper()

	id, err := engine.CreateUser(context.Background(), username, username+"@example.com", integrationPassword, role)
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return id
}

func loginIntegrationUser(t *testing.T, engine *goIdentity.Engine, username string) *goIdentity.AuthResult {
	t.Helper()

	res, err := engine.Authenticate(context.Background(), goIdentity.MethodPassword, goIdentity.Credentials{
		Username: username,
		Password: integrationPassword,
	})
	if err != nil {
		t.Fatalf("Authenticate(%s) failed: %v", username, err)
	}
	if res.Status != goIdentity.AuthSuccess {
		t.Fatalf("expected AuthSuccess, got %v", res.Status)
	}
	return res
}
