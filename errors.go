package goSession

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrLoginRejected is wrapped by every [*LoginError].
	ErrLoginRejected = errors.New("login rejected")
	// ErrBackendRequired is returned by Build without a backend.
	ErrBackendRequired = errors.New("backend required")
	// ErrTokenStoreRequired is returned by Build without a token store.
	ErrTokenStoreRequired = errors.New("token store required")
	// ErrInvalidLoginResponse is returned when the backend accepts a login
	// without handing back a token or user id.
	ErrInvalidLoginResponse = errors.New("invalid login response")
	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = errors.New("session closed")
)

// LoginError carries the reason a login was refused.
type LoginError struct {
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	if e.Reason == "" {
		return ErrLoginRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrLoginRejected.Error(), e.Reason)
}

// Unwrap exposes both ErrLoginRejected and the underlying cause.
func (e *LoginError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLoginRejected}
	}
	return []error{ErrLoginRejected, e.Err}
}

// BackendError is a non-success response from the authentication backend.
type BackendError struct {
	StatusCode int
	Reason     string
}

func (e *BackendError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Reason)
}

// loginReason picks the most useful human-readable reason out of err.
func loginReason(err error) string {
	var be *BackendError
	if errors.As(err, &be) && be.Reason != "" {
		return be.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
