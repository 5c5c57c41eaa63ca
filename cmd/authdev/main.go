// Command authdev runs a development authentication backend.
//
// It serves the httpapi routes from an in-memory account table seeded with
// one user per role:
//
//	player@example.com       player-password
//	owner@example.com        owner-password
//	admin@example.com        admin-password
//
// Run:
//
//	go run ./cmd/authdev -addr :8080 -ttl 10m
//
// Then point sessionctl at it:
//
//	go run ./cmd/sessionctl -backend http://localhost:8080 login -email admin@example.com
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrEthical07/goSession/backend/httpapi"
	"github.com/MrEthical07/goSession/backend/memory"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/permission"
)

type seedUser struct {
	email, password, role string
}

var seedUsers = []seedUser{
	{"player@example.com", "player-password", permission.RolePlayer},
	{"owner@example.com", "owner-password", permission.RoleVenueOwner},
	{"admin@example.com", "admin-password", permission.RoleAdmin},
}

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address")
		ttl       = flag.Duration("ttl", 10*time.Minute, "issued token lifetime")
		alg       = flag.String("alg", "hs256", "signing algorithm: hs256 or ed25519")
		delay     = flag.Duration("refresh-delay", 0, "artificial latency added to every refresh")
		attempts  = flag.Int("max-login-attempts", 5, "failed logins allowed per email per window")
		window    = flag.Duration("login-window", 15*time.Minute, "failed login counting window")
		redisAddr = flag.String("redis-addr", "", "redis address for login throttling; if empty, miniredis is used")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	tokens, err := newTokenManager(*alg, *ttl)
	if err != nil {
		logger.WithError(err).Fatal("token manager init")
	}
	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		logger.WithError(err).Fatal("password hasher init")
	}

	rdb, closeRedis, err := connectRedis(*redisAddr)
	if err != nil {
		logger.WithError(err).Fatal("redis init")
	}
	defer closeRedis()
	limiter, err := rate.New(rdb, rate.Config{Prefix: "authdev", MaxAttempts: *attempts, Cooldown: *window})
	if err != nil {
		logger.WithError(err).Fatal("login limiter init")
	}

	backend, err := memory.New(memory.Config{
		Tokens:       tokens,
		Hasher:       hasher,
		Logger:       logger,
		Limiter:      limiter,
		RefreshDelay: *delay,
	})
	if err != nil {
		logger.WithError(err).Fatal("backend init")
	}
	for _, u := range seedUsers {
		rec, err := backend.AddUser(u.email, u.password, u.role, map[string]bool{"seeded": true})
		if err != nil {
			logger.WithError(err).WithField("email", u.email).Fatal("seed user")
		}
		logger.WithFields(logrus.Fields{"email": rec.Email, "role": rec.Role}).Info("seeded user")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           otelhttp.NewHandler(httpapi.NewHandler(backend, logger), "authdev"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithFields(logrus.Fields{"addr": *addr, "ttl": *ttl, "alg": *alg}).Info("authdev listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server failed")
	}
}

func connectRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// newTokenManager generates a throwaway key so every run invalidates the
// previous run's tokens.
func newTokenManager(alg string, ttl time.Duration) (*jwt.Manager, error) {
	cfg := jwt.Config{TTL: ttl, Issuer: "authdev", Leeway: 5 * time.Second}
	switch alg {
	case "hs256":
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		cfg.SigningMethod = jwt.MethodHS256
		cfg.PrivateKey = key
	case "ed25519":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		cfg.SigningMethod = jwt.MethodEd25519
		cfg.PrivateKey = priv
		cfg.PublicKey = pub
	default:
		return nil, fmt.Errorf("unknown algorithm %q", alg)
	}
	return jwt.NewManager(cfg)
}
