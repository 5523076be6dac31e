// pkg/core/errors.go
package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed positions or arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexOutOfRange is returned when a marker index does not resolve.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMarkerNotFound is returned when a marker ID does not resolve.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrLocationUnavailable is returned when no location capability is present.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrSessionClosed is returned by a location session after it was cancelled
	// or after a one-shot session delivered its only reading.
	ErrSessionClosed = errors.New("location session closed")
)

// LocationError is a transient sensor failure. It does not end a watch session.
type LocationError struct {
	Reason string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("location error: %s", e.Reason)
}

// NewLocationError creates a LocationError with the given reason.
func NewLocationError(reason string) *LocationError {
	return &LocationError{Reason: reason}
}

// LocationFailureReason classifies a location failure as "unavailable",
// "closed", "cancelled", "sensor" or "error".
func LocationFailureReason(err error) string {
	var locErr *LocationError
	switch {
	case errors.Is(err, ErrLocationUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &locErr):
		return "sensor"
	}
	return "error"
}
