package cache

import "errors"

// Canonical, backend-neutral errors the persistence adapters must return.
var (
	ErrNotFound = errors.New("cache: not found")
	ErrClosed   = errors.New("cache: store closed")
)

// Domain error codes surfaced through core.Error.
const (
	// CodeFetchFailed is the only error code that propagates to callers of
	// Get: the upstream fetch failed and no stale entry was available.
	CodeFetchFailed = "FETCH_FAILED"
)
