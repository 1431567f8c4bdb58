package test

import (
	"context"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/redistore"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	stores := redistore.Open(redistore.Options{Client: rdb, Prefix: "myapp"})

	engine, _ := goIdentity.New().
		WithSigningSecret([]byte("replace-with-a-32-byte-app-secret")).
		WithUserRepository(stores.Users).
		WithSessionRepository(stores.Sessions).
		WithTokenRepository(stores.Tokens).
		WithBlacklistRepository(stores.Blacklist).
		Build()
	_ = engine
}

// ExampleEngine_Authenticate shows a typical login entrypoint call and structured error handling.
func ExampleEngine_Authenticate() {
	var engine *goIdentity.Engine
	_, err := engine.Authenticate(context.Background(), goIdentity.MethodPassword, goIdentity.Credentials{
		Username: "alice",
		Password: "password",
	})
	if err != nil {
		_ = err
	}
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *goIdentity.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
