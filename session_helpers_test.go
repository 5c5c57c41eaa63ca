package goSession

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/goSession/monitor"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

var testKey = []byte("session-test-key")

// mintToken signs a token expiring at testNow+ttl. Signature is irrelevant to
// the client but keeps the token realistic.
func mintToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	claims := gojwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  gojwt.NewNumericDate(testNow),
		ExpiresAt: gojwt.NewNumericDate(testNow.Add(ttl)),
		ID:        subject + "-" + ttl.String(),
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type fakeBackend struct {
	mu sync.Mutex

	loginResult LoginResult
	loginErr    error

	status    StatusResult
	statusErr error

	refreshFn func(ctx context.Context, token string) (string, error)

	logoutErr error

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
	statusCalls  atomic.Int32
	logoutCalls  atomic.Int32
	lastLogout   atomic.Value
}

func (f *fakeBackend) Login(context.Context, Credentials) (LoginResult, error) {
	f.loginCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return LoginResult{}, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeBackend) Refresh(ctx context.Context, token string) (string, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("refresh not configured")
	}
	return fn(ctx, token)
}

func (f *fakeBackend) Status(context.Context, string) (StatusResult, error) {
	f.statusCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeBackend) Logout(_ context.Context, token string) error {
	f.logoutCalls.Add(1)
	f.lastLogout.Store(token)
	return f.logoutErr
}

func (f *fakeBackend) setRefresh(fn func(ctx context.Context, token string) (string, error)) {
	f.mu.Lock()
	f.refreshFn = fn
	f.mu.Unlock()
}

type memTokenStore struct {
	mu       sync.Mutex
	token    string
	setErr   error
	onChange func()
}

func (m *memTokenStore) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokenStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.token = token
	return nil
}

func (m *memTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func (m *memTokenStore) current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// watchingStore records the watch callback so tests can simulate another
// process touching the store.
type watchingStore struct {
	memTokenStore
	cb atomic.Value
}

func (w *watchingStore) Watch(_ context.Context, onChange func()) error {
	w.cb.Store(onChange)
	return nil
}

func (w *watchingStore) externalClear() {
	w.memTokenStore.mu.Lock()
	w.memTokenStore.token = ""
	w.memTokenStore.mu.Unlock()
	if cb, ok := w.cb.Load().(func()); ok {
		cb()
	}
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type tickerRecorder struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (r *tickerRecorder) factory() monitor.TickerFactory {
	return func(time.Duration) monitor.Ticker {
		t := &manualTicker{ch: make(chan time.Time)}
		r.mu.Lock()
		r.tickers = append(r.tickers, t)
		r.mu.Unlock()
		return t
	}
}

func (r *tickerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickers)
}

func (r *tickerRecorder) last() *manualTicker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tickers) == 0 {
		return nil
	}
	return r.tickers[len(r.tickers)-1]
}

type harness struct {
	session *Session
	backend *fakeBackend
	store   TokenStore
	mem     *memTokenStore
	events  *ChannelSink
	tickers *tickerRecorder
}

type harnessOption func(*Builder)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	return newHarnessWithStore(t, &memTokenStore{}, opts...)
}

func newHarnessWithStore(t *testing.T, store TokenStore, opts ...harnessOption) *harness {
	t.Helper()

	backend := &fakeBackend{}
	events := NewChannelSink(64)
	tickers := &tickerRecorder{}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := DefaultConfig()
	cfg.Audit.BufferSize = 64

	b := New().
		WithConfig(cfg).
		WithBackend(backend).
		WithTokenStore(store).
		WithAuditSink(events).
		WithLogger(logger).
		WithClock(func() time.Time { return testNow }).
		WithTickerFactory(tickers.factory())
	for _, opt := range opts {
		opt(b)
	}

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(s.Close)

	h := &harness{session: s, backend: backend, store: store, events: events, tickers: tickers}
	switch st := store.(type) {
	case *memTokenStore:
		h.mem = st
	case *watchingStore:
		h.mem = &st.memTokenStore
	}
	return h
}

func withMaxRetries(n int) harnessOption {
	return func(b *Builder) { b.config.Session.MaxRetryAttempts = n }
}

func (h *harness) login(t *testing.T, role string, ttl time.Duration) UserRecord {
	t.Helper()
	h.backend.mu.Lock()
	h.backend.loginResult = LoginResult{
		Token: mintToken(t, "u-"+role, ttl),
		User:  UserRecord{ID: "u-" + role, Email: role + "@example.com", Role: role},
	}
	h.backend.loginErr = nil
	h.backend.mu.Unlock()

	user, err := h.session.Login(context.Background(), Credentials{Email: role + "@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return user
}

func (h *harness) nextEvent(t *testing.T) SecurityEvent {
	t.Helper()
	select {
	case ev := <-h.events.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return SecurityEvent{}
	}
}

func (h *harness) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.events.Events():
		t.Fatalf("unexpected audit event %s (%s)", ev.Kind, ev.Reason)
	case <-time.After(30 * time.Millisecond):
	}
}

// assertInvariant checks that a user is held exactly when a live token is stored.
func (h *harness) assertInvariant(t *testing.T) {
	t.Helper()
	token := h.mem.current()
	user := h.session.User()
	live := false
	if token != "" {
		if exp, ok := expiresAt(token); ok && testNow.Before(exp) {
			live = true
		}
	}
	if (user != nil) != live {
		t.Fatalf("invariant violated: user=%v live token=%v", user != nil, live)
	}
	if (user != nil) != h.session.IsAuthenticated() {
		t.Fatalf("state %s disagrees with user presence", h.session.State())
	}
}

func expiresAt(token string) (time.Time, bool) {
	claims := gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
