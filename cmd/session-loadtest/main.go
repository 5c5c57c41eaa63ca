// Command session-loadtest drives concurrent refresh storms through many
// client sessions sharing one Redis instance and reports how many backend
// refreshes single-flight let through.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/backend/memory"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/store"
)

const auditStream = "gosession:loadtest:audit"

func main() {
	var (
		sessions  = flag.Int("sessions", 64, "number of client sessions")
		callers   = flag.Int("callers", 32, "concurrent refresh callers per session per round")
		rounds    = flag.Int("rounds", 20, "refresh rounds")
		delay     = flag.Duration("refresh-delay", 5*time.Millisecond, "backend refresh latency")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix    = flag.String("prefix", "gsload", "token key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *callers <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, callers, and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	backend, err := newBackend(logger, *delay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("logging in %d sessions...\n", *sessions)
	clients := make([]*goSession.Session, *sessions)
	for i := range clients {
		s, err := newClient(ctx, client, backend, logger, *prefix, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "session %d: %v\n", i, err)
			os.Exit(1)
		}
		defer s.Close()
		clients[i] = s
	}

	stats := runStorm(ctx, clients, *callers, *rounds)

	var shared, escalated uint64
	for _, s := range clients {
		snap := s.MetricsSnapshot()
		shared += snap.Counters[goSession.MetricRefreshShared]
		escalated += snap.Counters[goSession.MetricRefreshEscalated]
	}
	backendCalls := backend.Calls().Refresh
	owners := stats.ops - int(shared)

	fmt.Println("---- results ----")
	printStats("refresh", stats)
	fmt.Printf("refresh callers=%d owners=%d backend_calls=%d shared=%d escalated=%d\n",
		stats.ops, owners, backendCalls, shared, escalated)

	for _, s := range clients {
		s.Close()
	}
	if n, err := client.XLen(ctx, auditStream).Result(); err == nil {
		fmt.Printf("audit events in %s: %d\n", auditStream, n)
	}

	// Every caller either joined a refresh or owned one; only owners reach
	// the backend.
	if backendCalls > owners {
		fmt.Fprintln(os.Stderr, "single-flight violated: more backend refreshes than refresh owners")
		os.Exit(1)
	}
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newBackend(logger logrus.FieldLogger, delay time.Duration) (*memory.Backend, error) {
	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("session-loadtest-signing-key"),
		Issuer:        "session-loadtest",
	})
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		return nil, err
	}
	return memory.New(memory.Config{Tokens: tokens, Hasher: hasher, Logger: logger, RefreshDelay: delay})
}

func newClient(ctx context.Context, client redis.UniversalClient, backend *memory.Backend, logger logrus.FieldLogger, prefix string, i int) (*goSession.Session, error) {
	email := fmt.Sprintf("load-%d@example.com", i)
	const pw = "load-test-password"
	if _, err := backend.AddUser(email, pw, "player", nil); err != nil {
		return nil, err
	}

	cfg := goSession.DefaultConfig()
	cfg.Session.MaxRetryAttempts = 5
	cfg.Audit.BufferSize = 1024

	s, err := goSession.New().
		WithConfig(cfg).
		WithBackend(backend).
		WithTokenStore(store.NewRedis(client, prefix, fmt.Sprintf("client-%d", i), 2*time.Hour)).
		WithAuditSink(goSession.NewRedisStreamSink(client, auditStream, 10000, logger)).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}
	s.Bootstrap(ctx)
	if _, err := s.Login(ctx, goSession.Credentials{Email: email, Password: pw}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// runStorm fires callers concurrent refreshes at every session per round.
func runStorm(ctx context.Context, clients []*goSession.Session, callers, rounds int) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, len(clients)*callers*rounds)
		mu        sync.Mutex
	)

	start := time.Now()
	for r := 0; r < rounds; r++ {
		var wg sync.WaitGroup
		for _, s := range clients {
			for c := 0; c < callers; c++ {
				wg.Add(1)
				go func(s *goSession.Session) {
					defer wg.Done()
					t0 := time.Now()
					out := s.Refresh(ctx)
					d := time.Since(t0)
					if out != refresh.Success {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}(s)
			}
		}
		wg.Wait()
	}
	return computeStats(time.Since(start), latencies, failures)
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
	return samples[(len(samples)-1)*p/100]
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
