package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning.
type Config struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter counts failed logins per identifier.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(client redis.UniversalClient, cfg Config) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be > 0")
	}
	if cfg.Cooldown <= 0 {
		return nil, errors.New("cooldown must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "gs"
	}
	return &Limiter{redis: client, config: cfg}, nil
}

// Check returns ErrRateLimited when identifier has used up its budget.
func (l *Limiter) Check(ctx context.Context, identifier string) error {
	count, err := l.Attempts(ctx, identifier)
	if err != nil {
		return err
	}
	if count >= l.config.MaxAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failed login and reports ErrRateLimited when the
// failure used up the budget.
func (l *Limiter) RecordFailure(ctx context.Context, identifier string) error {
	key := l.key(identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears identifier's counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures counted in the current window. Unknown
// identifiers report zero, so the answer never reveals account existence.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(identifier string) string {
	return l.config.Prefix + ":login:" + strings.ToLower(strings.TrimSpace(identifier))
}
