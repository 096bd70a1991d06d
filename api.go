// Package trackz provides a minimal, primitive in-flight event latency tracker.
//
// trackz measures the elapsed time between an "open" and a "close" marker for
// events identified by an opaque byte-string key, and invokes a caller-supplied
// callback when the latency exceeds a threshold or when the event is otherwise
// retired. It is the measurement engine beneath higher-level instrumentation
// (scheduler latency, I/O latency, request latency) but knows nothing about any
// particular use case.
//
// Core Components:
//   - Tracker: Owns the event pool, the keyed index, the timeout scheduler and
//     the garbage collector; exposes OpenEvent/CloseEvent/Close.
//   - Event: Immutable snapshot of a retired (or timed-out) event, passed to
//     callbacks.
//   - Recorder: Bounded buffer of Event snapshots for batch export.
//
// Basic Usage:
//
//	tracker, err := trackz.New(trackz.WithCapacity(1000))
//	if err != nil {
//	    return err
//	}
//	defer tracker.Close()
//
//	// Open an event. The callback fires if the event takes longer than
//	// the threshold to close.
//	tracker.OpenEvent(key, trackz.EventConfig{
//	    Threshold: 10 * time.Millisecond,
//	    Callback: func(ev trackz.Event) {
//	        log.Printf("slow event %q: %v", ev.Key, ev.EndTime.Sub(ev.StartTime))
//	    },
//	})
//
//	// ... later, on the matching completion path:
//	tracker.CloseEvent(key, 0)
//
// Thread Safety:
//
// All Tracker methods are safe for concurrent use by multiple goroutines.
// Callbacks run on the goroutine that triggered retirement (the closer, the
// timeout scheduler, or the garbage collector) with the tracker lock released,
// so a callback may itself call back into the tracker. Callbacks receive a
// value snapshot that shares no storage with the tracker; it remains valid
// after the callback returns.
//
// Memory Management:
//
// Event records are preallocated at construction and recycled through a fixed
// free list; the steady state allocates nothing per event. When all records
// are in flight, OpenEvent fails with ErrTrackerFull rather than growing.
//
// Resource Cleanup:
//
// Call tracker.Close() to cancel all pending timeouts and the garbage
// collector before the tracker is discarded. Close returns the number of
// events that were still open, which usually indicates opens that were never
// matched by closes.
package trackz

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// HashFunc hashes an event key. Distinct keys may collide; the tracker always
// disambiguates collisions with a MatchFunc on the full key.
type HashFunc func(key []byte) uint32

// MatchFunc reports whether two keys are equal. It is only consulted for keys
// whose hashes collide.
type MatchFunc func(a, b []byte) bool

// Callback is invoked when an event is retired past its latency threshold,
// times out, is garbage collected, or is evicted by a unique-mode open.
// The Event is a snapshot; retaining it is safe.
type Callback func(ev Event)

// DefaultHash is the HashFunc used when none is supplied.
func DefaultHash(key []byte) uint32 {
	return uint32(xxhash.Sum64(key))
}

// DefaultMatch is the MatchFunc used when none is supplied: byte-wise equality.
func DefaultMatch(a, b []byte) bool {
	return bytes.Equal(a, b)
}
