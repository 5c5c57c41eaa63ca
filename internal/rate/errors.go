package rate

import "errors"

var (
	// ErrRateLimited is returned once an identifier exhausts its attempt budget.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrRedisUnavailable wraps counter read and write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
