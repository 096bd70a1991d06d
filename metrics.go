package trackz

import "sync/atomic"

// Metrics is a point-in-time snapshot of tracker counters.
type Metrics struct {
	// Admission
	Opened  int64 // Events successfully opened
	Full    int64 // Opens rejected because the pool was exhausted
	Invalid int64 // Opens rejected because the key was too large

	// Retirement, by trigger
	Closed    int64 // Events retired by CloseEvent
	Timeouts  int64 // Timeout callbacks fired (timeouts do not retire)
	GCRetired int64 // Events retired by garbage-collector sweeps
	Evicted   int64 // Events evicted by unique-mode opens

	// Lookup
	NotFound int64 // CloseEvent calls that matched nothing

	// Capacity
	InFlight       int64 // Events currently open
	Capacity       int64 // Fixed pool size
	PendingAtClose int64 // Events still open when Close ran
}

// counters holds the tracker's live counters. All fields are atomic so the
// timeout and GC goroutines can bump them without taking the tracker lock.
type counters struct {
	opened         atomic.Int64
	full           atomic.Int64
	invalid        atomic.Int64
	closed         atomic.Int64
	timeouts       atomic.Int64
	gcRetired      atomic.Int64
	evicted        atomic.Int64
	notFound       atomic.Int64
	pendingAtClose atomic.Int64
}
