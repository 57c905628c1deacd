package source

import (
	"errors"
	"fmt"
)

// Common errors returned by source adapters.
var (
	// ErrNotFound indicates the search yielded nothing. A normal
	// outcome; adapters usually return (nil, nil) instead, but wrapped
	// lookups by ID may surface it.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the upstream rejected the call with 429
	// after the adapter's backoff was exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnavailable indicates the upstream kept failing (timeout, 5xx)
	// through every retry.
	ErrUnavailable = errors.New("source unavailable")

	// ErrBlocked indicates a scraped source detected automation and is
	// refusing service until manually resolved.
	ErrBlocked = errors.New("source blocked pending manual resolution")

	// ErrInvalidResponse indicates a payload the adapter could not parse.
	ErrInvalidResponse = errors.New("invalid response")
)

// FetchError carries the upstream context of a failed adapter call.
type FetchError struct {
	Source     string // adapter label, e.g. "semantic_scholar"
	Operation  string // e.g. "search_paper"
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %v", e.Source, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Source, e.Operation, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == 404
}

// IsRateLimited reports whether err is an exhausted-backoff 429.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == 429
}

// IsBlocked reports whether err means a scraped source hit a CAPTCHA or
// equivalent block.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}
