package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/redistore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type refreshState struct {
	value string
	mu    sync.Mutex
}

func main() {
	var (
		tokens      = flag.Int("tokens", 50000, "number of tokens to seed per phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gi-load", "redis key prefix")
	)
	flag.Parse()

	if *tokens <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "tokens, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	// Optional .env file can carry REDIS_ADDR and friends.
	if err := goIdentity.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
		os.Exit(1)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	stores := redistore.Open(redistore.Options{Client: client, Prefix: *prefix})

	engine, err := goIdentity.New().
		WithConfig(goIdentity.DefaultConfig()).
		WithSigningSecret([]byte("goidentity-loadtest-signing-secret!")).
		WithUserRepository(stores.Users).
		WithSessionRepository(stores.Sessions).
		WithTokenRepository(stores.Tokens).
		WithBlacklistRepository(stores.Blacklist).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	userID, err := engine.CreateUser(ctx, "loadtest", "loadtest@example.com", "Loadtest-Pass1!", goIdentity.RoleDeveloper)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed user failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d access and %d refresh tokens...\n", *tokens, *tokens)
	startSeed := time.Now()

	accessValues := make([]string, *tokens)
	states := make([]refreshState, *tokens)
	for i := 0; i < *tokens; i++ {
		access, err := engine.CreateToken(ctx, goIdentity.TokenRequest{
			Kind:   goIdentity.KindAccess,
			UserID: userID,
			Scopes: goIdentity.NewScopeSet(goIdentity.ScopeRead),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed access token failed: %v\n", err)
			os.Exit(1)
		}
		accessValues[i] = access.Value

		refresh, err := engine.CreateToken(ctx, goIdentity.TokenRequest{
			Kind:   goIdentity.KindRefresh,
			UserID: userID,
			Scopes: goIdentity.NewScopeSet(goIdentity.ScopeRead),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed refresh token failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = refreshState{value: refresh.Value}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, accessValues, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine counters: validate_success=%d validate_failure=%d refresh_success=%d refresh_failure=%d\n",
		snap.Counters[goIdentity.MetricValidateSuccess],
		snap.Counters[goIdentity.MetricValidateFailure],
		snap.Counters[goIdentity.MetricRefreshSuccess],
		snap.Counters[goIdentity.MetricRefreshFailure],
	)
}

func runValidatePhase(ctx context.Context, engine *goIdentity.Engine, values []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(values))
				t0 := time.Now()
				_, err := engine.ValidateToken(ctx, values[idx], goIdentity.ValidateRequest{})
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRefreshPhase(ctx context.Context, engine *goIdentity.Engine, states []refreshState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				state := &states[idx]

				state.mu.Lock()
				t0 := time.Now()
				pair, err := engine.RefreshToken(ctx, state.value, "")
				d := time.Since(t0)
				if err == nil {
					state.value = pair.Refresh.Value
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
