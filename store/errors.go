package store

import "errors"

// ErrEmptyToken is returned by Set when asked to store an empty token; use
// Clear to remove the token instead.
var ErrEmptyToken = errors.New("store: empty token")

// ErrStoreUnavailable wraps backend failures of the Redis adapter.
var ErrStoreUnavailable = errors.New("store: backend unavailable")
