package trackz

import "time"

// MaxKeySize is the maximum length of an event key in bytes. Keys are stored
// inline in preallocated records, so the bound is fixed at compile time.
const MaxKeySize = 128

// CloseReason identifies the trigger that retired an event.
type CloseReason int

const (
	// ReasonNone means the event has not been retired. Events force-retired
	// at Close() keep this reason; their callbacks never fire.
	ReasonNone CloseReason = iota

	// ReasonExplicit means CloseEvent matched and retired the event.
	ReasonExplicit

	// ReasonTimeout means the per-event timeout fired before the event was
	// closed. The event is NOT retired on this path; see OpenEvent.
	ReasonTimeout

	// ReasonGC means a garbage-collector sweep retired the event because its
	// age exceeded the configured threshold.
	ReasonGC

	// ReasonDuplicate means a unique-mode open for the same key evicted the
	// event.
	ReasonDuplicate
)

// String returns a human-readable name for the reason.
func (r CloseReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonExplicit:
		return "explicit"
	case ReasonTimeout:
		return "timeout"
	case ReasonGC:
		return "gc"
	case ReasonDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Event is the snapshot passed to callbacks. It is a value copy sharing no
// storage with the tracker's pooled records, so it stays valid after the
// callback returns.
type Event struct {
	// StartTime is the clock reading when the event was opened.
	StartTime time.Time

	// EndTime is the clock reading at retirement. It is zero for timeout
	// callbacks, which fire without retiring the event.
	EndTime time.Time

	// Priv is the opaque value supplied at OpenEvent, passed back unchanged.
	Priv any

	// Key is a copy of the event key.
	Key []byte

	// Threshold is the latency threshold the event was opened with.
	Threshold time.Duration

	// Timeout is the remaining timeout configuration. Zero after the timeout
	// has fired.
	Timeout time.Duration

	// CloseID is the correlation id supplied to CloseEvent. Set only for
	// ReasonExplicit.
	CloseID uint64

	// KeyHash is the cached hash of Key.
	KeyHash uint32

	// Reason is the trigger that produced this snapshot.
	Reason CloseReason
}

// Elapsed returns the measured latency, EndTime - StartTime.
// It returns 0 when EndTime has not been stamped (timeout callbacks).
func (e Event) Elapsed() time.Duration {
	if e.EndTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// record is the pooled, mutable representation of an open event. Records are
// owned exclusively by the tracker; every field access happens under the
// tracker lock. Callbacks only ever see snapshots.
type record struct {
	startTime time.Time
	endTime   time.Time
	callback  Callback
	priv      any

	// timerStop cancels the pending timeout goroutine. Non-nil only while a
	// timeout is armed.
	timerStop chan struct{}

	threshold time.Duration
	timeout   time.Duration
	closeID   uint64

	// seq is bumped every time the record returns to the pool. A timeout
	// goroutine captures the value at arm time and refuses to fire against a
	// recycled record.
	seq uint64

	keyLen  int
	keyHash uint32
	reason  CloseReason
	live    bool

	key [MaxKeySize]byte
}

// snapshot copies the record into an Event that is safe to hand to user code.
func (r *record) snapshot() Event {
	key := make([]byte, r.keyLen)
	copy(key, r.key[:r.keyLen])
	return Event{
		Key:       key,
		KeyHash:   r.keyHash,
		StartTime: r.startTime,
		EndTime:   r.endTime,
		Threshold: r.threshold,
		Timeout:   r.timeout,
		CloseID:   r.closeID,
		Priv:      r.priv,
		Reason:    r.reason,
	}
}
