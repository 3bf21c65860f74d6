package dispatch

import "errors"

var (
	// ErrSourceUnavailable marks a failed profile or token read. It aborts the invocation.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotFound is returned by stores when the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord marks a stored document that could not be decoded.
	// Callers skip such records.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMalformedEvent marks a change event that failed boundary validation.
	ErrMalformedEvent = errors.New("malformed change event")
)
