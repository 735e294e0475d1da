package ratelimit

import "errors"

// ErrRedisUnavailable wraps failures talking to the Redis backend.
var ErrRedisUnavailable = errors.New("ratelimit: redis unavailable")
