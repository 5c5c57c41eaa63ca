package goSession

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/monitor"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/sirupsen/logrus"
)

// Session is the single source of truth for authentication state.
//
// All methods are safe for concurrent use. Network calls never run while the
// state lock is held; store writes and monitor control always do, so a
// transition is observed atomically with its token change.
type Session struct {
	cfg     Config
	backend Backend
	store   TokenStore
	coord   *refresh.Coordinator
	monitor *monitor.Monitor
	roles   *permission.RoleManager
	audit   *audit.Dispatcher
	metrics *Metrics
	logger  logrus.FieldLogger
	now     func() time.Time

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	state State
	user  *UserRecord
	// gen is the coordinator epoch of the current session. Work started
	// under an older gen must not change state.
	gen    uint64
	closed bool

	bootStarted bool
	bootDone    chan struct{}
}

// Bootstrap restores a persisted session. It runs once; later and concurrent
// calls wait for the first to finish and return the resulting state.
//
// A stored token that is expired, rejected by the backend, or cannot be
// checked is discarded.
func (s *Session) Bootstrap(ctx context.Context) State {
	s.mu.Lock()
	if s.bootStarted {
		s.mu.Unlock()
		select {
		case <-s.bootDone:
		case <-ctx.Done():
		}
		return s.State()
	}
	s.bootStarted = true
	gen := s.gen
	s.mu.Unlock()
	defer close(s.bootDone)

	token, err := s.store.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("bootstrap: token store read failed")
		return s.settleUnauthenticated(ctx, gen, false)
	}
	if token == "" {
		return s.settleUnauthenticated(ctx, gen, false)
	}

	freshness := jwt.IsFresh(token, s.cfg.Session.RefreshThreshold, s.now())
	if freshness == jwt.Expired {
		s.logger.Debug("bootstrap: stored token expired")
		s.metrics.Inc(MetricBootstrapFailClosed)
		return s.settleUnauthenticated(ctx, gen, true)
	}

	status, err := s.backend.Status(ctx, token)
	if err != nil || !status.IsAuthenticated || status.User == nil {
		entry := s.logger.WithField("is_authenticated", status.IsAuthenticated)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("bootstrap: stored session rejected")
		s.metrics.Inc(MetricBootstrapFailClosed)
		return s.settleUnauthenticated(ctx, gen, true)
	}

	s.mu.Lock()
	if s.gen != gen || s.closed {
		st := s.state
		s.mu.Unlock()
		return st
	}
	s.gen = s.coord.Reset()
	s.user = status.User.Clone()
	s.state = StateAuthenticated
	s.monitor.Start(s.bg)
	s.mu.Unlock()

	s.metrics.Inc(MetricBootstrapRestored)
	s.logger.WithField("user_id", status.User.ID).Info("session restored")

	if freshness == jwt.NearExpiry {
		s.spawnRefresh()
	}
	return StateAuthenticated
}

// settleUnauthenticated finishes a bootstrap without a session. clear removes
// the stored token.
func (s *Session) settleUnauthenticated(ctx context.Context, gen uint64, clear bool) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return s.state
	}
	if clear {
		s.gen = s.coord.Reset()
		if err := s.store.Clear(context.WithoutCancel(ctx)); err != nil {
			s.logger.WithError(err).Warn("bootstrap: failed to clear rejected token")
		}
	}
	s.user = nil
	s.state = StateUnauthenticated
	return s.state
}

// Login authenticates against the backend and starts a new session. A prior
// session, if any, is replaced. Concurrent logins are not deduplicated; the
// last one to finish wins.
//
// A refused login returns a [*LoginError] and leaves the state unchanged.
func (s *Session) Login(ctx context.Context, creds Credentials) (UserRecord, error) {
	if s.isClosed() {
		return UserRecord{}, ErrSessionClosed
	}

	result, err := s.backend.Login(ctx, creds)
	if err == nil {
		err = s.checkLoginResult(result)
	}
	if err != nil {
		reason := loginReason(err)
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, EventLoginFailure, &UserRecord{Email: creds.Email}, reason, nil)
		s.logger.WithError(err).WithField("email", creds.Email).Info("login rejected")
		return UserRecord{}, &LoginError{Reason: reason, Err: err}
	}

	user := result.User.Clone()

	s.mu.Lock()
	s.gen = s.coord.Reset()
	if err := s.store.Set(ctx, result.Token); err != nil {
		s.mu.Unlock()
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, EventLoginFailure, user, "token_store", nil)
		return UserRecord{}, fmt.Errorf("store token: %w", err)
	}
	s.user = user
	s.state = StateAuthenticated
	s.monitor.Start(s.bg)
	s.mu.Unlock()

	s.metrics.Inc(MetricLoginSuccess)
	s.emitAudit(ctx, EventLoginSuccess, user, "", nil)
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("login succeeded")

	return *user.Clone(), nil
}

func (s *Session) checkLoginResult(result LoginResult) error {
	if result.Token == "" {
		return fmt.Errorf("%w: missing token", ErrInvalidLoginResponse)
	}
	if result.User.ID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidLoginResponse)
	}
	if jwt.IsFresh(result.Token, s.cfg.Session.RefreshThreshold, s.now()) == jwt.Expired {
		return fmt.Errorf("%w: token already expired", ErrInvalidLoginResponse)
	}
	return nil
}

// Logout ends the session. The backend is told on a best-effort basis; its
// errors are logged, never returned. Local state is always cleared. Logout is
// idempotent and emits a LOGOUT event only when a session actually ended.
//
// The returned error reports a failure to clear the token store.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.monitor.Stop()
	s.mu.Unlock()

	token, err := s.store.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("logout: token store read failed")
	}
	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.WithError(err).Warn("logout: backend call failed")
		}
	}

	s.mu.Lock()
	s.gen = s.coord.Reset()
	clearErr := s.store.Clear(context.WithoutCancel(ctx))
	user := s.user
	ended := s.state == StateAuthenticated
	s.user = nil
	s.state = StateUnauthenticated
	s.monitor.Stop()
	s.mu.Unlock()

	if clearErr != nil {
		s.logger.WithError(clearErr).Warn("logout: failed to clear token store")
	}
	if ended {
		s.metrics.Inc(MetricLogout)
		s.emitAudit(ctx, EventLogout, user, "", nil)
		s.logger.WithField("user_id", user.ID).Info("logged out")
	}
	if clearErr != nil {
		return fmt.Errorf("clear token: %w", clearErr)
	}
	return nil
}

// Refresh asks the coordinator for a token refresh. It fails immediately
// when no session is active.
func (s *Session) Refresh(ctx context.Context) refresh.Outcome {
	if !s.IsAuthenticated() {
		return refresh.Failure
	}
	return s.runRefresh(ctx)
}

func (s *Session) runRefresh(ctx context.Context) refresh.Outcome {
	res := s.coord.Refresh(ctx)
	switch {
	case res.Shared:
		s.metrics.Inc(MetricRefreshShared)
	case res.Outcome == refresh.Success:
		s.metrics.Inc(MetricRefreshSuccess)
		s.metrics.Observe(MetricRefreshLatency, res.Duration)
	case errors.Is(res.Err, refresh.ErrSuperseded), errors.Is(res.Err, refresh.ErrNoToken):
	default:
		s.metrics.Inc(MetricRefreshFailure)
	}
	if res.Escalated {
		s.metrics.Inc(MetricRefreshEscalated)
	}
	return res.Outcome
}

// spawnRefresh starts a refresh that outlives the caller. Its result is only
// observed through the coordinator.
func (s *Session) spawnRefresh() {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		s.runRefresh(s.bg)
	}()
}

func (s *Session) onRefreshExhausted(ctx context.Context, epoch uint64, failures int) {
	s.forceLogout(ctx, epoch, ReasonRefreshExhausted, map[string]string{
		"failures": strconv.Itoa(failures),
	})
}

// tick is the monitor callback.
func (s *Session) tick(ctx context.Context) {
	s.mu.RLock()
	state, gen := s.state, s.gen
	s.mu.RUnlock()
	if state != StateAuthenticated || ctx.Err() != nil {
		return
	}
	s.metrics.Inc(MetricMonitorTick)

	token, err := s.store.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("monitor: token store read failed")
		return
	}
	if token == "" {
		s.forceLogout(ctx, gen, ReasonTokenMissing, map[string]string{"source": "monitor"})
		return
	}

	switch jwt.IsFresh(token, s.cfg.Session.RefreshThreshold, s.now()) {
	case jwt.Expired:
		s.forceLogout(ctx, gen, ReasonExpired, map[string]string{"source": "monitor"})
	case jwt.NearExpiry:
		s.spawnRefresh()
	}
}

// forceLogout ends the session identified by gen without contacting the
// backend. It is a no-op when gen is no longer current.
func (s *Session) forceLogout(ctx context.Context, gen uint64, reason string, metadata map[string]string) bool {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.gen != gen || s.state != StateAuthenticated {
		s.mu.Unlock()
		return false
	}
	s.gen = s.coord.Reset()
	s.monitor.Stop()
	clearErr := s.store.Clear(ctx)
	user := s.user
	s.user = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()

	if clearErr != nil {
		s.logger.WithError(clearErr).Warn("forced logout: failed to clear token store")
	}
	s.metrics.Inc(MetricSessionExpired)
	s.emitAudit(ctx, EventTokenExpired, user, reason, metadata)
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "reason": reason}).Info("session ended")
	return true
}

// onStoreChange reacts to token changes made outside this process. Only a
// removal matters: another process logging out ends this session too.
func (s *Session) onStoreChange() {
	s.mu.RLock()
	state, gen := s.state, s.gen
	s.mu.RUnlock()
	if state != StateAuthenticated {
		return
	}

	token, err := s.store.Get(s.bg)
	if err != nil || token != "" {
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateAuthenticated {
		s.mu.Unlock()
		return
	}
	s.gen = s.coord.Reset()
	s.monitor.Stop()
	user := s.user
	s.user = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()

	s.metrics.Inc(MetricLogout)
	s.emitAudit(s.bg, EventLogout, user, "", map[string]string{"source": "external"})
	s.logger.WithField("user_id", user.ID).Info("session ended by another process")
}

// AccessToken returns the bearer token for an outbound request. An expired
// or missing token ends the session and yields [ErrNotAuthenticated].
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	state, gen := s.state, s.gen
	s.mu.RUnlock()
	if state != StateAuthenticated {
		return "", ErrNotAuthenticated
	}

	token, err := s.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		s.forceLogout(ctx, gen, ReasonTokenMissing, map[string]string{"source": "access_token"})
		return "", ErrNotAuthenticated
	}
	if jwt.IsFresh(token, s.cfg.Session.RefreshThreshold, s.now()) == jwt.Expired {
		s.forceLogout(ctx, gen, ReasonExpired, map[string]string{"source": "access_token"})
		return "", ErrNotAuthenticated
	}
	return token, nil
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// RetryCount returns the consecutive refresh failures of this session.
func (s *Session) RetryCount() int {
	return s.coord.Failures()
}

func (s *Session) MonitorRunning() bool {
	return s.monitor.Running()
}

// Config returns a copy of the active configuration.
func (s *Session) Config() Config {
	return cloneConfig(s.cfg)
}

// Metrics returns the live counters.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot copies the current counters.
func (s *Session) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close stops background work and flushes pending audit events. It does not
// log out: the stored token survives for the next process. Close is
// idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.monitor.Stop()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.audit.Close()
}
