package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard fetch failure classes. A *FetchError wraps one of these so callers
// can branch with errors.Is.
var (
	// ErrNotFound indicates the file, repository or ref does not exist.
	ErrNotFound = errors.New("schema source not found")

	// ErrUnauthorized indicates missing or rejected credentials.
	ErrUnauthorized = errors.New("schema source rejected credentials")

	// ErrRateLimited indicates the source throttled the request.
	ErrRateLimited = errors.New("schema source rate limited")

	// ErrUnavailable indicates a network failure or a server-side error.
	// This is transient; the next poll may succeed.
	ErrUnavailable = errors.New("schema source unavailable")

	// ErrInvalidContent indicates the source answered with something that
	// is not a type definitions file (e.g. a directory listing).
	ErrInvalidContent = errors.New("schema source returned invalid content")
)

// FetchError describes a failed fetch.
//
//	err := NewFetchError("github:acme/api/schema.graphql", 404, ErrNotFound)
//	errors.Is(err, ErrNotFound) // true
type FetchError struct {
	// Source is the descriptor of the fetcher that failed
	Source string

	// StatusCode is the HTTP status when the source answered, zero otherwise
	StatusCode int

	// Err wraps one of the sentinel errors above
	Err error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.Source, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a FetchError.
func NewFetchError(source string, status int, err error) *FetchError {
	return &FetchError{Source: source, StatusCode: status, Err: err}
}

// IsNotFound reports whether err is a fetch failure caused by a missing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// classifyStatus maps an HTTP status to a sentinel error.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusForbidden:
		// GitHub answers 403 both for bad scopes and for primary rate limits;
		// the caller refines this using the rate limit headers.
		return ErrUnauthorized
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrInvalidContent
	}
}
