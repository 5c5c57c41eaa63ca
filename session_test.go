package goSession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
)

func TestBuildRequiresBackendAndStore(t *testing.T) {
	if _, err := New().WithTokenStore(&memTokenStore{}).Build(); !errors.Is(err, ErrBackendRequired) {
		t.Fatalf("expected ErrBackendRequired, got %v", err)
	}
	if _, err := New().WithBackend(&fakeBackend{}).Build(); !errors.Is(err, ErrTokenStoreRequired) {
		t.Fatalf("expected ErrTokenStoreRequired, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithBackend(&fakeBackend{}).WithTokenStore(&memTokenStore{})
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer s.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRejectsInvalidRoles(t *testing.T) {
	_, err := New().
		WithBackend(&fakeBackend{}).
		WithTokenStore(&memTokenStore{}).
		WithRoles([]permission.RoleDef{{Name: "a", Rank: 1}, {Name: "b", Rank: 1}}).
		Build()
	if err == nil {
		t.Fatal("expected duplicate rank to be rejected")
	}
}

func TestInitialStateUnknown(t *testing.T) {
	h := newHarness(t)
	if h.session.State() != StateUnknown {
		t.Fatalf("expected unknown, got %s", h.session.State())
	}
	if h.session.HasRole(permission.RolePlayer) || h.session.HasPermission(permission.PermVenueBrowse) {
		t.Fatal("authorization must be false before bootstrap")
	}
}

func TestBootstrapWithoutToken(t *testing.T) {
	h := newHarness(t)
	if got := h.session.Bootstrap(context.Background()); got != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", got)
	}
	if h.backend.statusCalls.Load() != 0 {
		t.Fatal("status must not be called without a token")
	}
	if h.session.MonitorRunning() {
		t.Fatal("monitor must not run while unauthenticated")
	}
}

func TestBootstrapExpiredTokenIsCleared(t *testing.T) {
	h := newHarness(t)
	h.mem.token = mintToken(t, "u1", -time.Minute)

	if got := h.session.Bootstrap(context.Background()); got != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", got)
	}
	if h.mem.current() != "" {
		t.Fatal("expired token should be cleared")
	}
	if h.backend.statusCalls.Load() != 0 {
		t.Fatal("expired token must not be sent to status")
	}
	if got := h.session.Metrics().Value(MetricBootstrapFailClosed); got != 1 {
		t.Fatalf("expected fail-closed metric 1, got %d", got)
	}
}

func TestBootstrapFailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		status StatusResult
		err    error
	}{
		{name: "status error", err: errors.New("connection refused")},
		{name: "not authenticated", status: StatusResult{IsAuthenticated: false}},
		{name: "authenticated without user", status: StatusResult{IsAuthenticated: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mem.token = mintToken(t, "u1", time.Hour)
			h.backend.status = tt.status
			h.backend.statusErr = tt.err

			if got := h.session.Bootstrap(context.Background()); got != StateUnauthenticated {
				t.Fatalf("expected unauthenticated, got %s", got)
			}
			if h.mem.current() != "" {
				t.Fatal("rejected token should be cleared")
			}
			if h.session.User() != nil {
				t.Fatal("user must be nil")
			}
			h.assertInvariant(t)
		})
	}
}

func TestBootstrapRestoresSession(t *testing.T) {
	h := newHarness(t)
	h.mem.token = mintToken(t, "u1", time.Hour)
	h.backend.status = StatusResult{
		IsAuthenticated: true,
		User:            &UserRecord{ID: "u1", Email: "a@example.com", Role: permission.RoleVenueOwner},
	}

	if got := h.session.Bootstrap(context.Background()); got != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", got)
	}
	if u := h.session.User(); u == nil || u.ID != "u1" {
		t.Fatalf("unexpected user %+v", u)
	}
	if !h.session.MonitorRunning() {
		t.Fatal("monitor should run after restore")
	}
	if h.backend.refreshCalls.Load() != 0 {
		t.Fatal("fresh token must not be refreshed")
	}
	h.assertInvariant(t)
}

func TestBootstrapNearExpiryRefreshesInBackground(t *testing.T) {
	h := newHarness(t)
	h.mem.token = mintToken(t, "u1", 2*time.Minute)
	h.backend.status = StatusResult{IsAuthenticated: true, User: &UserRecord{ID: "u1", Role: permission.RolePlayer}}
	fresh := mintToken(t, "u1", time.Hour)
	h.backend.setRefresh(func(context.Context, string) (string, error) { return fresh, nil })

	if got := h.session.Bootstrap(context.Background()); got != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", got)
	}
	h.session.wg.Wait()

	if got := h.backend.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one background refresh, got %d", got)
	}
	if h.mem.current() != fresh {
		t.Fatal("refreshed token should be stored")
	}
}

func TestBootstrapRunsOnce(t *testing.T) {
	h := newHarness(t)
	h.mem.token = mintToken(t, "u1", time.Hour)
	h.backend.status = StatusResult{IsAuthenticated: true, User: &UserRecord{ID: "u1", Role: permission.RolePlayer}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := h.session.Bootstrap(context.Background()); got != StateAuthenticated {
				t.Errorf("expected authenticated, got %s", got)
			}
		}()
	}
	wg.Wait()

	if got := h.backend.statusCalls.Load(); got != 1 {
		t.Fatalf("expected one status call, got %d", got)
	}
}

// Scenario D.
func TestLoginAuthenticates(t *testing.T) {
	h := newHarness(t)
	h.session.Bootstrap(context.Background())

	user := h.login(t, permission.RolePlayer, time.Hour)

	if user.ID != "u-player" {
		t.Fatalf("unexpected user %+v", user)
	}
	if h.session.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", h.session.State())
	}
	if h.session.RetryCount() != 0 {
		t.Fatalf("expected retry counter 0, got %d", h.session.RetryCount())
	}
	if !h.session.MonitorRunning() {
		t.Fatal("monitor should be running")
	}
	if h.mem.current() == "" {
		t.Fatal("token should be stored")
	}

	ev := h.nextEvent(t)
	if ev.Kind != EventLoginSuccess || ev.UserID != "u-player" || ev.ID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.Timestamp.Equal(testNow) {
		t.Fatalf("event timestamp %v, want %v", ev.Timestamp, testNow)
	}
	h.assertInvariant(t)
}

func TestLoginFailureReportsReason(t *testing.T) {
	h := newHarness(t)
	h.session.Bootstrap(context.Background())
	h.backend.loginErr = &BackendError{StatusCode: 401, Reason: "invalid credentials"}

	_, err := h.session.Login(context.Background(), Credentials{Email: "x@example.com", Password: "bad"})

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("expected *LoginError, got %T %v", err, err)
	}
	if loginErr.Reason != "invalid credentials" {
		t.Fatalf("unexpected reason %q", loginErr.Reason)
	}
	if !errors.Is(err, ErrLoginRejected) {
		t.Fatal("login error should wrap ErrLoginRejected")
	}
	var be *BackendError
	if !errors.As(err, &be) || be.StatusCode != 401 {
		t.Fatal("login error should expose the backend error")
	}
	if h.session.State() != StateUnauthenticated {
		t.Fatalf("state should be unchanged, got %s", h.session.State())
	}
	if h.session.MonitorRunning() {
		t.Fatal("monitor must not start on failure")
	}

	ev := h.nextEvent(t)
	if ev.Kind != EventLoginFailure || ev.Reason != "invalid credentials" || ev.Email != "x@example.com" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLoginFailureKeepsExistingSession(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RoleAdmin, time.Hour)
	token := h.mem.current()

	h.backend.mu.Lock()
	h.backend.loginErr = errors.New("backend down")
	h.backend.mu.Unlock()
	if _, err := h.session.Login(context.Background(), Credentials{Email: "a", Password: "b"}); err == nil {
		t.Fatal("expected login error")
	}

	if !h.session.IsAuthenticated() || h.mem.current() != token {
		t.Fatal("failed login must not disturb the existing session")
	}
}

func TestLoginRejectsUnusableResponse(t *testing.T) {
	tests := []struct {
		name   string
		result func(t *testing.T) LoginResult
	}{
		{name: "missing token", result: func(*testing.T) LoginResult {
			return LoginResult{User: UserRecord{ID: "u1"}}
		}},
		{name: "missing user id", result: func(t *testing.T) LoginResult {
			return LoginResult{Token: mintToken(t, "u1", time.Hour)}
		}},
		{name: "expired token", result: func(t *testing.T) LoginResult {
			return LoginResult{Token: mintToken(t, "u1", -time.Second), User: UserRecord{ID: "u1"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.loginResult = tt.result(t)
			_, err := h.session.Login(context.Background(), Credentials{})
			if !errors.Is(err, ErrInvalidLoginResponse) {
				t.Fatalf("expected ErrInvalidLoginResponse, got %v", err)
			}
			if h.session.IsAuthenticated() {
				t.Fatal("must not authenticate")
			}
		})
	}
}

func TestLoginStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.mem.setErr = errors.New("disk full")
	h.backend.loginResult = LoginResult{Token: mintToken(t, "u1", time.Hour), User: UserRecord{ID: "u1"}}

	if _, err := h.session.Login(context.Background(), Credentials{}); err == nil {
		t.Fatal("expected store error")
	}
	if h.session.IsAuthenticated() {
		t.Fatal("must not authenticate without a stored token")
	}
	h.assertInvariant(t)
}

func TestLogoutIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)
	token := h.mem.current()
	h.nextEvent(t)

	if err := h.session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := h.session.Logout(context.Background()); err != nil {
		t.Fatalf("second Logout: %v", err)
	}

	if h.session.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", h.session.State())
	}
	if h.mem.current() != "" || h.session.User() != nil {
		t.Fatal("logout must clear token and user")
	}
	if h.session.MonitorRunning() {
		t.Fatal("monitor must stop on logout")
	}
	if got := h.backend.logoutCalls.Load(); got != 1 {
		t.Fatalf("backend logout should be called once, got %d", got)
	}
	if got, _ := h.backend.lastLogout.Load().(string); got != token {
		t.Fatal("backend logout should receive the stored token")
	}

	ev := h.nextEvent(t)
	if ev.Kind != EventLogout || ev.UserID != "u-player" {
		t.Fatalf("unexpected event %+v", ev)
	}
	h.expectNoEvent(t)
	h.assertInvariant(t)
}

func TestLogoutSwallowsBackendError(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)
	h.backend.logoutErr = errors.New("network unreachable")

	if err := h.session.Logout(context.Background()); err != nil {
		t.Fatalf("backend errors must not surface, got %v", err)
	}
	if h.session.IsAuthenticated() || h.mem.current() != "" {
		t.Fatal("local state must be cleared regardless of backend")
	}
}

func TestLogoutBeforeBootstrap(t *testing.T) {
	h := newHarness(t)
	h.mem.token = mintToken(t, "u1", time.Hour)

	if err := h.session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if h.session.State() != StateUnauthenticated || h.mem.current() != "" {
		t.Fatal("logout should leave a clean unauthenticated session")
	}
	h.expectNoEvent(t)
}

// Scenario A.
func TestTickFreshTokenDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, 10*time.Minute)
	token := h.mem.current()

	h.session.tick(context.Background())
	h.session.wg.Wait()

	if h.backend.refreshCalls.Load() != 0 {
		t.Fatal("fresh token must not be refreshed")
	}
	if !h.session.IsAuthenticated() || h.mem.current() != token {
		t.Fatal("fresh tick must not change the session")
	}
}

// Scenario B.
func TestTickNearExpiryRefreshesOnce(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, 2*time.Minute)
	next := mintToken(t, "u-player", time.Hour)
	h.backend.setRefresh(func(context.Context, string) (string, error) { return next, nil })

	h.session.tick(context.Background())
	h.session.wg.Wait()

	if got := h.backend.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if h.mem.current() != next {
		t.Fatal("refreshed token should be stored")
	}
	if !h.session.IsAuthenticated() {
		t.Fatal("session should stay authenticated")
	}
	if got := h.session.Metrics().Value(MetricRefreshSuccess); got != 1 {
		t.Fatalf("expected refresh success metric 1, got %d", got)
	}
}

// Scenario C.
func TestTickExpiredForcesLogoutWithoutRefresh(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)
	h.nextEvent(t)
	h.mem.mu.Lock()
	h.mem.token = mintToken(t, "u-player", -time.Second)
	h.mem.mu.Unlock()

	h.session.tick(context.Background())
	h.session.wg.Wait()

	if h.backend.refreshCalls.Load() != 0 {
		t.Fatal("expired token must not be refreshed")
	}
	if h.session.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", h.session.State())
	}
	if h.mem.current() != "" {
		t.Fatal("expired token should be cleared")
	}
	if h.session.MonitorRunning() {
		t.Fatal("monitor must stop after forced logout")
	}
	ev := h.nextEvent(t)
	if ev.Kind != EventTokenExpired || ev.Reason != ReasonExpired {
		t.Fatalf("unexpected event %+v", ev)
	}
	if h.backend.logoutCalls.Load() != 0 {
		t.Fatal("forced logout must not call the backend")
	}
	h.assertInvariant(t)
}

func TestTickMissingTokenForcesLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)
	h.nextEvent(t)
	h.mem.mu.Lock()
	h.mem.token = ""
	h.mem.mu.Unlock()

	h.session.tick(context.Background())

	if h.session.IsAuthenticated() {
		t.Fatal("missing token should end the session")
	}
	ev := h.nextEvent(t)
	if ev.Kind != EventTokenExpired || ev.Reason != ReasonTokenMissing {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestTickIgnoredWhenUnauthenticated(t *testing.T) {
	h := newHarness(t)
	h.session.Bootstrap(context.Background())
	h.session.tick(context.Background())
	if got := h.session.Metrics().Value(MetricMonitorTick); got != 0 {
		t.Fatalf("tick should be ignored, got %d", got)
	}
}

func TestTickIgnoredWithCancelledContext(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)
	h.mem.mu.Lock()
	h.mem.token = mintToken(t, "u-player", -time.Minute)
	h.mem.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.session.tick(ctx)
	if !h.session.IsAuthenticated() {
		t.Fatal("stale tick must not change state")
	}
}

func TestBoundedRetryEscalates(t *testing.T) {
	h := newHarness(t, withMaxRetries(3))
	h.login(t, permission.RolePlayer, 2*time.Minute)
	h.nextEvent(t)
	h.backend.setRefresh(func(context.Context, string) (string, error) {
		return "", errors.New("timeout")
	})

	for i := 1; i <= 2; i++ {
		if got := h.session.Refresh(context.Background()); got != refresh.Failure {
			t.Fatalf("attempt %d: expected failure", i)
		}
		if !h.session.IsAuthenticated() {
			t.Fatalf("attempt %d: session must survive below the ceiling", i)
		}
		if h.session.RetryCount() != i {
			t.Fatalf("attempt %d: retry count %d", i, h.session.RetryCount())
		}
		h.assertInvariant(t)
	}

	if got := h.session.Refresh(context.Background()); got != refresh.Failure {
		t.Fatal("expected failure at ceiling")
	}
	if h.session.State() != StateUnauthenticated {
		t.Fatalf("expected forced logout, got %s", h.session.State())
	}
	if h.mem.current() != "" {
		t.Fatal("token should be cleared after escalation")
	}
	if h.session.RetryCount() != 0 {
		t.Fatalf("counter should reset, got %d", h.session.RetryCount())
	}
	ev := h.nextEvent(t)
	if ev.Kind != EventTokenExpired || ev.Reason != ReasonRefreshExhausted || ev.Metadata["failures"] != "3" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if got := h.session.Metrics().Value(MetricRefreshEscalated); got != 1 {
		t.Fatalf("expected escalation metric 1, got %d", got)
	}
	h.assertInvariant(t)
}

func TestRefreshSingleFlight(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, 2*time.Minute)
	next := mintToken(t, "u-player", time.Hour)
	release := make(chan struct{})
	h.backend.setRefresh(func(context.Context, string) (string, error) {
		<-release
		return next, nil
	})

	const callers = 16
	outcomes := make([]refresh.Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = h.session.Refresh(context.Background())
		}(i)
	}

	waitUntil(t, func() bool { return h.session.coord.Waiters() == callers-1 })
	close(release)
	wg.Wait()

	if got := h.backend.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one backend refresh, got %d", got)
	}
	for i, o := range outcomes {
		if o != refresh.Success {
			t.Fatalf("caller %d got %s", i, o)
		}
	}
	if got := h.session.Metrics().Value(MetricRefreshShared); got != callers-1 {
		t.Fatalf("expected %d shared refreshes, got %d", callers-1, got)
	}
}

func TestRefreshWhenUnauthenticated(t *testing.T) {
	h := newHarness(t)
	h.session.Bootstrap(context.Background())
	if got := h.session.Refresh(context.Background()); got != refresh.Failure {
		t.Fatalf("expected failure, got %s", got)
	}
	if h.backend.refreshCalls.Load() != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestRefreshAfterLogoutIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, 2*time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	h.backend.setRefresh(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "late-token", nil
	})

	done := make(chan refresh.Outcome, 1)
	go func() { done <- h.session.Refresh(context.Background()) }()
	<-started

	if err := h.session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	close(release)
	if got := <-done; got != refresh.Failure {
		t.Fatalf("superseded refresh should report failure, got %s", got)
	}

	if h.mem.current() != "" {
		t.Fatalf("late refresh resurrected token %q", h.mem.current())
	}
	if h.session.IsAuthenticated() {
		t.Fatal("late refresh must not resurrect the session")
	}
	h.assertInvariant(t)
}

func TestLoginResetsRetryCounter(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, 2*time.Minute)
	h.backend.setRefresh(func(context.Context, string) (string, error) { return "", errors.New("nope") })
	h.session.Refresh(context.Background())
	if h.session.RetryCount() != 1 {
		t.Fatalf("expected 1 failure, got %d", h.session.RetryCount())
	}

	h.login(t, permission.RoleAdmin, time.Hour)
	if h.session.RetryCount() != 0 {
		t.Fatalf("login should reset the counter, got %d", h.session.RetryCount())
	}
	if u := h.session.User(); u == nil || u.Role != permission.RoleAdmin {
		t.Fatal("second login should replace the user")
	}
}

func TestMonitorLifecycle(t *testing.T) {
	h := newHarness(t)
	h.session.Bootstrap(context.Background())
	if h.session.MonitorRunning() || h.tickers.count() != 0 {
		t.Fatal("monitor must not start while unauthenticated")
	}

	h.login(t, permission.RolePlayer, time.Hour)
	if !h.session.MonitorRunning() || h.tickers.count() != 1 {
		t.Fatalf("expected one running ticker, got %d", h.tickers.count())
	}
	first := h.tickers.last()

	h.login(t, permission.RoleAdmin, time.Hour)
	if h.tickers.count() != 2 {
		t.Fatalf("re-login should restart the monitor, got %d tickers", h.tickers.count())
	}
	waitUntil(t, first.stopped.Load)

	second := h.tickers.last()
	second.ch <- testNow
	waitUntil(t, func() bool { return h.session.Metrics().Value(MetricMonitorTick) == 1 })

	if err := h.session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if h.session.MonitorRunning() {
		t.Fatal("monitor must stop on logout")
	}
	waitUntil(t, second.stopped.Load)
}

func TestMonitorTickDrivesForcedLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)
	h.nextEvent(t)
	h.mem.mu.Lock()
	h.mem.token = mintToken(t, "u-player", -time.Minute)
	h.mem.mu.Unlock()

	ticker := h.tickers.last()
	ticker.ch <- testNow

	waitUntil(t, func() bool { return !h.session.IsAuthenticated() })
	waitUntil(t, ticker.stopped.Load)
	if h.session.MonitorRunning() {
		t.Fatal("monitor should be stopped")
	}
	if ev := h.nextEvent(t); ev.Kind != EventTokenExpired {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAccessToken(t *testing.T) {
	h := newHarness(t)
	if _, err := h.session.AccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	h.login(t, permission.RolePlayer, time.Hour)
	token, err := h.session.AccessToken(context.Background())
	if err != nil || token != h.mem.current() {
		t.Fatalf("AccessToken = %q, %v", token, err)
	}

	h.mem.mu.Lock()
	h.mem.token = mintToken(t, "u-player", -time.Minute)
	h.mem.mu.Unlock()
	if _, err := h.session.AccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for expired token, got %v", err)
	}
	if h.session.IsAuthenticated() {
		t.Fatal("expired access token should end the session")
	}
	h.assertInvariant(t)
}

func TestExternalClearEndsSession(t *testing.T) {
	ws := &watchingStore{}
	h := newHarnessWithStore(t, ws)
	h.login(t, permission.RolePlayer, time.Hour)
	h.nextEvent(t)

	ws.externalClear()

	if h.session.IsAuthenticated() {
		t.Fatal("external clear should end the session")
	}
	if h.session.MonitorRunning() {
		t.Fatal("monitor should stop")
	}
	ev := h.nextEvent(t)
	if ev.Kind != EventLogout || ev.Metadata["source"] != "external" {
		t.Fatalf("unexpected event %+v", ev)
	}
	h.assertInvariant(t)
}

func TestCloseStopsBackgroundWork(t *testing.T) {
	h := newHarness(t)
	h.login(t, permission.RolePlayer, time.Hour)

	h.session.Close()
	h.session.Close()

	if h.session.MonitorRunning() {
		t.Fatal("monitor should stop on close")
	}
	if h.mem.current() == "" {
		t.Fatal("close must keep the stored token")
	}
	if _, err := h.session.Login(context.Background(), Credentials{}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestUserIsCopied(t *testing.T) {
	h := newHarness(t)
	h.backend.loginResult = LoginResult{
		Token: mintToken(t, "u1", time.Hour),
		User:  UserRecord{ID: "u1", Role: permission.RolePlayer, Profile: map[string]bool{"verified": true}},
	}
	if _, err := h.session.Login(context.Background(), Credentials{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	u := h.session.User()
	u.Role = permission.RoleAdmin
	u.Profile["verified"] = false

	again := h.session.User()
	if again.Role != permission.RolePlayer || !again.Profile["verified"] {
		t.Fatal("User must return an independent copy")
	}
}
