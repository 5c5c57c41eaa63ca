package goSession

import (
	"context"
)

// State is the authentication state of a [Session].
type State uint8

const (
	// StateUnknown is the state before Bootstrap has completed.
	StateUnknown State = iota
	// StateUnauthenticated means no valid session exists.
	StateUnauthenticated
	// StateAuthenticated means a token and user record are held.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// UserRecord is the identity returned by the backend on login and status.
// It is kept in memory only.
type UserRecord struct {
	ID      string          `json:"id"`
	Email   string          `json:"email"`
	Role    string          `json:"role"`
	Profile map[string]bool `json:"profile,omitempty"`
}

// Clone returns a deep copy of u.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	if u.Profile != nil {
		out.Profile = make(map[string]bool, len(u.Profile))
		for k, v := range u.Profile {
			out.Profile[k] = v
		}
	}
	return &out
}

// Credentials are the login inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is a successful backend login.
type LoginResult struct {
	Token string     `json:"token"`
	User  UserRecord `json:"user"`
}

// StatusResult is the backend's view of a token.
type StatusResult struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	User            *UserRecord `json:"user,omitempty"`
}

// Backend is the remote authentication service.
//
// Implementations must be safe for concurrent use. A rejected login should
// be reported as a [*BackendError] so that the rejection reason reaches the
// caller and the audit trail.
type Backend interface {
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
	Refresh(ctx context.Context, token string) (string, error)
	Status(ctx context.Context, token string) (StatusResult, error)
	Logout(ctx context.Context, token string) error
}

// TokenStore persists exactly one bearer token. Get returns "" when no token
// is stored.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// TokenWatcher is implemented by stores that can report changes made by
// other processes. onChange may be called from any goroutine.
type TokenWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}
