package cache

import "errors"

// Errors returned by every Cache backend. Backend failures wrap ErrCacheUnavailable
// so callers can fall back to the database.
var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrCacheUnavailable = errors.New("cache: backend unavailable")
	ErrInvalidValue     = errors.New("cache: stored value does not decode")
)
