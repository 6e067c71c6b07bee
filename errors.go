package query

import "github.com/cockroachdb/errors"

var (
	// ErrClosed is returned by operations on a closed Store or Client.
	ErrClosed = errors.New("query store is closed")

	// ErrInvalidConfig is wrapped by every option validation failure.
	ErrInvalidConfig = errors.New("invalid query store configuration")

	// ErrInvalidInterval is returned for zero or negative refresh intervals.
	ErrInvalidInterval = errors.New("refresh interval must be positive")

	// ErrRemoved is returned by Fetch.Wait when the entry was removed before it settled.
	ErrRemoved = errors.New("query entry was removed")

	// ErrTypeMismatch is returned by Use when a capability type is already
	// registered with different key or value types.
	ErrTypeMismatch = errors.New("capability registered with different key or value type")

	// ErrCapabilityPanic is the settled error of a fetch whose capability panicked.
	ErrCapabilityPanic = errors.New("capability panicked")

	// errSuperseded is returned by a flight whose result was discarded.
	errSuperseded = errors.New("fetch superseded by a newer generation")
)
