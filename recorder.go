package trackz

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recorder buffers retirement snapshots for batch export. It is the usual
// callback sink for instrumentation built on a Tracker: wire Callback() into
// an EventConfig and periodically drain with Export.
// Safe for concurrent use by multiple goroutines.
type Recorder struct {
	events       []Event
	eventsCh     chan Event
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	mu           sync.Mutex
	closed       atomic.Bool
	syncMode     bool // Bypass channel for synchronous recording.
}

// NewRecorder creates a recorder with the specified channel buffer size.
func NewRecorder(bufferSize int) *Recorder {
	r := &Recorder{
		events:   make([]Event, 0, 8), // Start with small capacity.
		eventsCh: make(chan Event, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.start()
	return r
}

// start runs the recorder's main loop, receiving events from the channel.
func (r *Recorder) start() {
	defer close(r.done)

	for {
		select {
		case <-r.stopCh:
			// Drain remaining events before shutdown.
			for {
				select {
				case ev := <-r.eventsCh:
					r.buffer(ev)
				default:
					return
				}
			}
		case ev := <-r.eventsCh:
			r.buffer(ev)
		}
	}
}

// Record buffers one event with backpressure protection. Callbacks may run
// on timeout or GC goroutines, so Record never blocks: if the channel is
// full the event is dropped and the drop counter incremented.
// In sync mode, events are buffered directly for deterministic testing.
func (r *Recorder) Record(ev Event) {
	if r.syncMode {
		if r.closed.Load() {
			r.droppedCount.Add(1)
			return
		}
		r.buffer(ev)
		return
	}

	select {
	case r.eventsCh <- ev:
		// Successfully queued.
	default:
		// Channel full - drop to avoid blocking the retirement path.
		r.droppedCount.Add(1)
	}
}

// Callback returns a Callback that records into this recorder, for use in an
// EventConfig.
func (r *Recorder) Callback() Callback {
	return r.Record
}

// buffer appends one event, growing the backing slice as needed.
func (r *Recorder) buffer(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) >= cap(r.events) {
		currentCap := cap(r.events)
		var newCap int
		if currentCap < 1024 {
			newCap = currentCap * 2
		} else {
			// Grow by 50% for large buffers to limit memory usage.
			newCap = currentCap + currentCap/2
		}
		if newCap < 32 {
			newCap = 32
		}
		grown := make([]Event, len(r.events), newCap)
		copy(grown, r.events)
		r.events = grown
	}
	r.events = append(r.events, ev)
}

// Export returns all buffered events and clears the internal buffer. Event
// snapshots already share nothing with the tracker, so the returned slice is
// safe to hold and modify.
func (r *Recorder) Export() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return nil
	}

	result := make([]Event, len(r.events))
	copy(result, r.events)

	// Shrink only when the buffer is very oversized to avoid allocation
	// churn.
	if cap(r.events) > 256 && len(r.events) < cap(r.events)/8 {
		newCap := cap(r.events) / 4
		if newCap < 32 {
			newCap = 32
		}
		r.events = make([]Event, 0, newCap)
	} else {
		r.events = r.events[:0]
	}

	return result
}

// Count returns the current number of buffered events.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// DroppedCount returns the total number of events dropped due to backpressure.
func (r *Recorder) DroppedCount() int64 {
	return r.droppedCount.Load()
}

// SetSyncMode enables synchronous recording for testing. When enabled,
// events are buffered directly without going through the channel, making
// tests deterministic.
func (r *Recorder) SetSyncMode(sync bool) {
	r.syncMode = sync
}

// Reset clears all buffered events and resets the drop counter.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = r.events[:0]
	r.droppedCount.Store(0)
}

// Close shuts down the recorder goroutine, draining any queued events.
func (r *Recorder) Close() {
	if r.closed.Swap(true) {
		return
	}
	close(r.stopCh)
	select {
	case <-r.done:
		// Clean shutdown completed.
	case <-time.After(100 * time.Millisecond):
		// Timeout - continue anyway.
	}
}
