package trackz

import "errors"

// Open Errors
//
// These errors are returned by OpenEvent when an event cannot be admitted.

// ErrKeyTooLarge is returned when a key exceeds MaxKeySize bytes.
// The open is rejected and no state changes.
var ErrKeyTooLarge = errors.New("key exceeds maximum size")

// ErrTrackerFull is returned when every pooled event record is in flight.
// This is a transient backpressure condition: the open is rejected, no event
// is created and no callback fires. Callers may retry after a close or simply
// drop the measurement.
var ErrTrackerFull = errors.New("event pool exhausted")

// Lifecycle Errors
//
// These errors are returned based on the tracker's lifecycle state.

// ErrTrackerClosed is returned when attempting to use a tracker that has been
// closed via Close().
var ErrTrackerClosed = errors.New("tracker is closed")

// ErrAlreadyClosed is returned when calling Close() on a tracker that has
// already been closed. This prevents double-cleanup.
var ErrAlreadyClosed = errors.New("tracker already closed")

// Construction Errors

// ErrInvalidCapacity is returned by New when the configured capacity is
// negative.
var ErrInvalidCapacity = errors.New("capacity must be >= 0")
