// Package memory is a reference authentication backend kept entirely in
// process memory.
//
// Tokens are signed JWTs issued by jwt.Manager. Refresh rotates the token and
// revokes the previous jti. Logout revokes the presented jti until its natural
// expiry. Nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidEmail = errors.New("email required")
)

const (
	reasonInvalidCredentials = "invalid credentials"
	reasonInvalidToken       = "invalid or expired token"
	reasonUnknownUser        = "user no longer exists"
	reasonThrottled          = "too many login attempts"
	reasonUnavailable        = "login temporarily unavailable"
)

// LoginLimiter throttles failed logins per email.
type LoginLimiter interface {
	Check(ctx context.Context, identifier string) error
	RecordFailure(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// Config wires a Backend.
type Config struct {
	Tokens *jwt.Manager
	Hasher *password.Hasher
	Logger logrus.FieldLogger
	// Limiter is optional.
	Limiter LoginLimiter
	// RefreshDelay stalls every refresh, which makes concurrent refresh
	// behavior observable in load tests.
	RefreshDelay time.Duration
	// Now is the revocation clock. Nil uses time.Now.
	Now func() time.Time
}

type account struct {
	user goSession.UserRecord
	hash string
}

// Backend implements goSession.Backend.
type Backend struct {
	tokens       *jwt.Manager
	hasher       *password.Hasher
	limiter      LoginLimiter
	logger       logrus.FieldLogger
	refreshDelay time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account
	byID     map[string]string
	revoked  map[string]time.Time

	calls struct {
		sync.Mutex
		login, refresh, status, logout int
	}
}

var _ goSession.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("token manager required")
	}
	if cfg.Hasher == nil {
		return nil, errors.New("password hasher required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Backend{
		tokens:       cfg.Tokens,
		hasher:       cfg.Hasher,
		limiter:      cfg.Limiter,
		logger:       cfg.Logger.WithField("component", "memory_backend"),
		refreshDelay: cfg.RefreshDelay,
		now:          cfg.Now,
		accounts:     make(map[string]*account),
		byID:         make(map[string]string),
		revoked:      make(map[string]time.Time),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddUser registers an account and returns its record with a generated ID.
func (b *Backend) AddUser(email, plaintext, role string, profile map[string]bool) (goSession.UserRecord, error) {
	key := normalizeEmail(email)
	if key == "" {
		return goSession.UserRecord{}, ErrInvalidEmail
	}
	hash, err := b.hasher.Hash(plaintext)
	if err != nil {
		return goSession.UserRecord{}, err
	}

	user := goSession.UserRecord{ID: uuid.NewString(), Email: key, Role: role, Profile: profile}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[key]; ok {
		return goSession.UserRecord{}, ErrUserExists
	}
	b.accounts[key] = &account{user: user, hash: hash}
	b.byID[user.ID] = key
	return *user.Clone(), nil
}

// RemoveUser deletes an account. Outstanding tokens stop verifying.
func (b *Backend) RemoveUser(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.byID[id]
	if !ok {
		return false
	}
	delete(b.byID, id)
	delete(b.accounts, key)
	return true
}

func (b *Backend) Login(ctx context.Context, creds goSession.Credentials) (goSession.LoginResult, error) {
	b.count(func() { b.calls.login++ })
	if err := ctx.Err(); err != nil {
		return goSession.LoginResult{}, err
	}
	email := normalizeEmail(creds.Email)

	if b.limiter != nil {
		if err := b.limiter.Check(ctx, email); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return goSession.LoginResult{}, &goSession.BackendError{StatusCode: http.StatusTooManyRequests, Reason: reasonThrottled}
			}
			b.logger.WithError(err).Error("login throttle check failed")
			return goSession.LoginResult{}, &goSession.BackendError{StatusCode: http.StatusServiceUnavailable, Reason: reasonUnavailable}
		}
	}

	b.mu.RLock()
	acct, ok := b.accounts[email]
	var (
		user goSession.UserRecord
		hash string
	)
	if ok {
		user, hash = *acct.user.Clone(), acct.hash
	}
	b.mu.RUnlock()

	match := false
	if ok {
		var err error
		match, err = b.hasher.Verify(creds.Password, hash)
		if err != nil {
			match = false
		}
	}
	if !match {
		b.recordFailure(ctx, email)
		return goSession.LoginResult{}, &goSession.BackendError{StatusCode: http.StatusUnauthorized, Reason: reasonInvalidCredentials}
	}

	if b.limiter != nil {
		if err := b.limiter.Reset(ctx, email); err != nil {
			b.logger.WithError(err).Warn("login throttle reset failed")
		}
	}

	token, _, err := b.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return goSession.LoginResult{}, err
	}
	b.logger.WithField("user_id", user.ID).Debug("issued session token")
	return goSession.LoginResult{Token: token, User: user}, nil
}

func (b *Backend) recordFailure(ctx context.Context, email string) {
	if b.limiter == nil {
		return
	}
	if err := b.limiter.RecordFailure(ctx, email); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		b.logger.WithError(err).Warn("login throttle update failed")
	}
}

// Refresh exchanges a live token for a new one and revokes the old jti.
func (b *Backend) Refresh(ctx context.Context, token string) (string, error) {
	b.count(func() { b.calls.refresh++ })
	if b.refreshDelay > 0 {
		timer := time.NewTimer(b.refreshDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}

	claims, user, err := b.verify(token)
	if err != nil {
		return "", err
	}

	next, _, err := b.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", err
	}
	b.revoke(claims)
	return next, nil
}

// Status never fails for a bad token; it reports isAuthenticated=false.
func (b *Backend) Status(ctx context.Context, token string) (goSession.StatusResult, error) {
	b.count(func() { b.calls.status++ })
	if err := ctx.Err(); err != nil {
		return goSession.StatusResult{}, err
	}
	_, user, err := b.verify(token)
	if err != nil {
		return goSession.StatusResult{IsAuthenticated: false}, nil
	}
	return goSession.StatusResult{IsAuthenticated: true, User: user.Clone()}, nil
}

// Logout revokes token. An unverifiable token is already unusable, so it is
// not an error.
func (b *Backend) Logout(_ context.Context, token string) error {
	b.count(func() { b.calls.logout++ })
	claims, err := b.tokens.Parse(token)
	if err != nil {
		return nil
	}
	b.revoke(claims)
	return nil
}

func (b *Backend) verify(token string) (*jwt.Claims, goSession.UserRecord, error) {
	claims, err := b.tokens.Parse(token)
	if err != nil {
		return nil, goSession.UserRecord{}, &goSession.BackendError{StatusCode: http.StatusUnauthorized, Reason: reasonInvalidToken}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, gone := b.revoked[claims.ID]; gone {
		return nil, goSession.UserRecord{}, &goSession.BackendError{StatusCode: http.StatusUnauthorized, Reason: reasonInvalidToken}
	}
	key, ok := b.byID[claims.UID]
	if !ok {
		return nil, goSession.UserRecord{}, &goSession.BackendError{StatusCode: http.StatusUnauthorized, Reason: reasonUnknownUser}
	}
	return claims, *b.accounts[key].user.Clone(), nil
}

func (b *Backend) revoke(claims *jwt.Claims) {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	for jti, exp := range b.revoked {
		if !now.Before(exp) {
			delete(b.revoked, jti)
		}
	}
	b.revoked[claims.ID] = claims.ExpiresAt.Time
}

// Revoked returns the number of revoked tokens that have not yet expired.
func (b *Backend) Revoked() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.revoked)
}

// Calls reports how many times each operation was invoked.
type Calls struct {
	Login, Refresh, Status, Logout int
}

func (b *Backend) Calls() Calls {
	b.calls.Lock()
	defer b.calls.Unlock()
	return Calls{Login: b.calls.login, Refresh: b.calls.refresh, Status: b.calls.status, Logout: b.calls.logout}
}

func (b *Backend) count(f func()) {
	b.calls.Lock()
	f()
	b.calls.Unlock()
}
