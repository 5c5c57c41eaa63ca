package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxAttempts is the consecutive-failure ceiling used when none is configured.
const DefaultMaxAttempts = 3

// ErrMissingToken is reported when the backend answers without a new token.
var ErrMissingToken = errors.New("refresh response missing token")

// ErrNoToken is reported when there is no stored token to refresh.
var ErrNoToken = errors.New("no token to refresh")

// ErrSuperseded is reported when the session ended while the refresh was in flight.
var ErrSuperseded = errors.New("refresh superseded by session change")

// Outcome is the only result a refresh caller ever sees.
type Outcome uint8

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Result describes one Refresh call.
type Result struct {
	Outcome Outcome
	// Shared is true when the caller joined a refresh started by someone else.
	Shared bool
	// Escalated is true when this refresh hit the failure ceiling.
	Escalated bool
	// Failures is the consecutive failure count after the refresh settled.
	Failures int
	// Duration is the wall time of the backend round-trip.
	Duration time.Duration
	// Err is the underlying cause of a failure, for logging only.
	Err error
}

// Func performs the backend refresh for token and returns its replacement.
type Func func(ctx context.Context, token string) (string, error)

// TokenStore is the subset of the credential store the coordinator needs.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
}

// ExhaustedFunc is invoked, outside the coordinator lock, when the failure
// ceiling is reached. epoch identifies the session generation that failed.
type ExhaustedFunc func(ctx context.Context, epoch uint64, failures int)

// Config wires a Coordinator.
type Config struct {
	MaxAttempts int
	Refresh     Func
	Store       TokenStore
	OnExhausted ExhaustedFunc
	Logger      logrus.FieldLogger
}

// call is one in-flight refresh. done is closed once result is final.
type call struct {
	done    chan struct{}
	result  Result
	waiters int
}

// Coordinator serializes refreshes for one session.
type Coordinator struct {
	maxAttempts int
	refresh     Func
	store       TokenStore
	onExhausted ExhaustedFunc
	logger      logrus.FieldLogger

	mu       sync.Mutex
	inflight *call
	failures int
	epoch    uint64
}

// New validates cfg and returns a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Refresh == nil {
		return nil, errors.New("refresh func required")
	}
	if cfg.Store == nil {
		return nil, errors.New("token store required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Coordinator{
		maxAttempts: cfg.MaxAttempts,
		refresh:     cfg.Refresh,
		store:       cfg.Store,
		onExhausted: cfg.OnExhausted,
		logger:      cfg.Logger,
	}, nil
}

// Refresh runs a backend refresh, or joins the one already in flight.
//
// A joining caller whose ctx ends before the shared refresh settles gets a
// Failure result without affecting the counter; the shared refresh keeps
// running for its owner.
func (c *Coordinator) Refresh(ctx context.Context) Result {
	c.mu.Lock()
	if existing := c.inflight; existing != nil {
		existing.waiters++
		c.mu.Unlock()
		select {
		case <-existing.done:
			res := existing.result
			res.Shared = true
			return res
		case <-ctx.Done():
			return Result{Outcome: Failure, Shared: true, Failures: c.Failures(), Err: ctx.Err()}
		}
	}

	cl := &call{done: make(chan struct{})}
	c.inflight = cl
	epoch := c.epoch
	c.mu.Unlock()

	res, escalate := c.run(ctx, epoch)

	c.mu.Lock()
	cl.result = res
	if c.inflight == cl {
		c.inflight = nil
	}
	close(cl.done)
	c.mu.Unlock()

	if escalate && c.onExhausted != nil {
		c.onExhausted(ctx, epoch, res.Failures)
	}
	return res
}

func (c *Coordinator) run(ctx context.Context, epoch uint64) (Result, bool) {
	token, err := c.store.Get(ctx)
	if err != nil {
		return c.settle(ctx, epoch, "", 0, err)
	}
	if token == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		return Result{Outcome: Failure, Failures: c.failures, Err: ErrNoToken}, false
	}

	start := time.Now()
	next, err := c.refresh(ctx, token)
	elapsed := time.Since(start)
	if err == nil && next == "" {
		err = ErrMissingToken
	}
	return c.settle(ctx, epoch, next, elapsed, err)
}

// settle applies the outcome under the lock so that Reset, and therefore any
// logout, is strictly ordered before or after the token write.
func (c *Coordinator) settle(ctx context.Context, epoch uint64, next string, elapsed time.Duration, err error) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return Result{Outcome: Failure, Failures: c.failures, Duration: elapsed, Err: ErrSuperseded}, false
	}

	if err == nil {
		if setErr := c.store.Set(ctx, next); setErr != nil {
			err = setErr
		}
	}

	if err == nil {
		c.failures = 0
		return Result{Outcome: Success, Duration: elapsed}, false
	}

	c.failures++
	failures := c.failures
	c.logger.WithError(err).WithFields(logrus.Fields{
		"failures":     failures,
		"max_attempts": c.maxAttempts,
	}).Warn("token refresh failed")

	if failures < c.maxAttempts {
		return Result{Outcome: Failure, Failures: failures, Duration: elapsed, Err: err}, false
	}

	c.failures = 0
	return Result{Outcome: Failure, Escalated: true, Failures: failures, Duration: elapsed, Err: err}, true
}

// Reset starts a new epoch: the failure counter returns to zero and any
// in-flight refresh becomes stale. Joiners of a stale refresh still receive
// its (discarded) result. Reset returns the new epoch.
func (c *Coordinator) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.failures = 0
	c.inflight = nil
	return c.epoch
}

// Epoch returns the current epoch.
func (c *Coordinator) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Failures returns the consecutive failure count of the current epoch.
func (c *Coordinator) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// InFlight reports whether a refresh of the current epoch is running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Waiters returns how many callers are joined to the in-flight refresh.
func (c *Coordinator) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

// MaxAttempts returns the failure ceiling.
func (c *Coordinator) MaxAttempts() int {
	return c.maxAttempts
}
