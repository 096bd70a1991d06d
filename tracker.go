package trackz

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// defaultCapacity is the pool size used when WithCapacity is not supplied.
const defaultCapacity = 100

// Option configures a Tracker during creation.
type Option func(*config)

// config holds internal configuration for tracker creation.
type config struct {
	clock       clockz.Clock
	logger      *zap.Logger
	hash        HashFunc
	match       MatchFunc
	userCtx     any
	capacity    int
	gcPeriod    time.Duration
	gcThreshold time.Duration
}

// WithCapacity sets the maximum number of concurrently open events.
// Default is 100. The pool is preallocated at this size and never grows;
// opening past it returns ErrTrackerFull.
func WithCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}

// WithHashFunc sets the key hash function. Default is DefaultHash.
func WithHashFunc(fn HashFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.hash = fn
		}
	}
}

// WithMatchFunc sets the key equality function. Default is DefaultMatch.
func WithMatchFunc(fn MatchFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.match = fn
		}
	}
}

// WithGCPeriod sets how often the garbage collector sweeps the index.
// The collector runs only when both the period and the threshold are nonzero.
func WithGCPeriod(d time.Duration) Option {
	return func(c *config) {
		c.gcPeriod = d
	}
}

// WithGCThreshold sets the age past which a sweep retires an open event.
// The collector runs only when both the period and the threshold are nonzero.
func WithGCThreshold(d time.Duration) Option {
	return func(c *config) {
		c.gcThreshold = d
	}
}

// WithUserContext attaches an opaque value to the tracker, returned verbatim
// by UserContext. The tracker never inspects it.
func WithUserContext(v any) Option {
	return func(c *config) {
		c.userCtx = v
	}
}

// WithClock sets the clock implementation for time operations.
// Default is clockz.RealClock for production use.
// Use clockz.FakeClock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger. Default is zap.NewNop(); the tracker only logs
// at Close, when events are still pending.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// EventConfig describes one open event.
type EventConfig struct {
	// Callback fires when the event is retired past Threshold, times out, is
	// garbage collected, or is evicted by a unique-mode open. Nil disables
	// callback dispatch for this event.
	Callback Callback

	// Priv is an opaque value passed back to the callback unchanged.
	Priv any

	// Threshold is the latency above which an explicit close or GC sweep
	// invokes the callback. At or below it, the event retires silently.
	Threshold time.Duration

	// Timeout, when nonzero, arms a one-shot timer at open. If the event is
	// still open when it fires, the callback runs with ReasonTimeout. The
	// timeout does NOT retire the event; see OpenEvent.
	Timeout time.Duration

	// Unique evicts any already-open event with the same key before this one
	// is admitted, firing its callback with ReasonDuplicate.
	Unique bool
}

// firing pairs a snapshot with its callback so retirement paths can detach
// and recycle under the lock, then dispatch after releasing it.
type firing struct {
	cb Callback
	ev Event
}

// Tracker tracks in-flight events and their latency.
// Safe for concurrent use by multiple goroutines.
type Tracker struct {
	clock   clockz.Clock
	logger  *zap.Logger
	hash    HashFunc
	match   MatchFunc
	userCtx any

	// mu guards pool, index, the GC settings and closed. It is never held
	// across a user callback.
	mu          sync.Mutex
	pool        *eventPool
	index       *keyedIndex
	gcPeriod    time.Duration
	gcThreshold time.Duration
	closed      bool

	gcRearm chan struct{}
	stop    chan struct{}
	gcDone  sync.WaitGroup

	counters counters
}

// New creates a tracker, preallocating the event pool.
//
// Default configuration:
//   - capacity 100
//   - DefaultHash / DefaultMatch
//   - garbage collector disabled (zero period and threshold)
//   - real clock, no-op logger
func New(opts ...Option) (*Tracker, error) {
	cfg := config{
		clock:    clockz.RealClock,
		logger:   zap.NewNop(),
		hash:     DefaultHash,
		match:    DefaultMatch,
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	if cfg.capacity == 0 {
		cfg.capacity = defaultCapacity
	}

	t := &Tracker{
		clock:       cfg.clock,
		logger:      cfg.logger,
		hash:        cfg.hash,
		match:       cfg.match,
		userCtx:     cfg.userCtx,
		pool:        newEventPool(cfg.capacity),
		index:       newKeyedIndex(),
		gcPeriod:    cfg.gcPeriod,
		gcThreshold: cfg.gcThreshold,
		gcRearm:     make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}

	// The collector goroutine always runs; it parks on the rearm channel
	// while either setting is zero, so the GC can be enabled at runtime.
	t.gcDone.Add(1)
	go t.gcLoop()

	return t, nil
}

// OpenEvent acquires a pooled record for key, stamps it with the current
// time and inserts it into the index. The duplicate check (Unique), record
// acquisition, stamping, timeout arming and insertion happen in one critical
// section, so no concurrent close or sweep can observe a half-built event.
//
// Returns ErrKeyTooLarge when len(key) > MaxKeySize, ErrTrackerFull when no
// record is free, ErrTrackerClosed after Close.
//
// Timeout contract: when the per-event timeout fires, the callback runs with
// ReasonTimeout but the event stays open in the index. Retiring it is the
// callback's responsibility, normally by calling CloseEvent with the same
// key. A later explicit close past the threshold will fire the callback
// again with ReasonExplicit; the garbage collector, when enabled, reaps
// timed-out events whose callbacks never closed them.
func (t *Tracker) OpenEvent(key []byte, cfg EventConfig) error {
	if len(key) > MaxKeySize {
		t.counters.invalid.Add(1)
		return ErrKeyTooLarge
	}
	hash := t.hash(key)
	now := t.clock.Now()

	var evictions []firing

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTrackerClosed
	}

	if cfg.Unique {
		evictions = t.evictDuplicatesLocked(key, hash)
	}

	r, ok := t.pool.acquire()
	if !ok {
		t.mu.Unlock()
		t.dispatch(evictions)
		t.counters.full.Add(1)
		return ErrTrackerFull
	}

	r.keyLen = copy(r.key[:], key)
	r.keyHash = hash
	r.startTime = now
	r.threshold = cfg.Threshold
	r.timeout = cfg.Timeout
	r.callback = cfg.Callback
	r.priv = cfg.Priv
	r.reason = ReasonNone
	r.live = true

	if cfg.Timeout > 0 {
		stop := make(chan struct{})
		r.timerStop = stop
		go t.timeoutWait(r, r.seq, cfg.Timeout, stop)
	}

	t.index.insert(r)
	t.mu.Unlock()

	t.dispatch(evictions)
	t.counters.opened.Add(1)
	return nil
}

// evictDuplicatesLocked retires every open event matching key, marking each
// ReasonDuplicate. Evicted slots return to the pool immediately so a tracker
// at capacity can still admit the replacing event; callbacks are returned to
// the caller for dispatch outside the lock.
func (t *Tracker) evictDuplicatesLocked(key []byte, hash uint32) []firing {
	var evictions []firing
	t.index.visitBucket(hash, func(r *record) bool {
		if !t.match(key, r.key[:r.keyLen]) {
			return false
		}
		r.reason = ReasonDuplicate
		t.cancelTimeoutLocked(r)
		if r.callback != nil {
			evictions = append(evictions, firing{cb: r.callback, ev: r.snapshot()})
		}
		t.pool.release(r)
		t.counters.evicted.Add(1)
		return true
	})
	return evictions
}

// CloseEvent retires every open event whose key matches, returning whether
// any matched. A false return is a benign race outcome: the event may have
// been retired already by a timeout callback, a GC sweep or a unique-mode
// eviction.
//
// For each match the callback fires with ReasonExplicit and CloseID=id only
// when the elapsed time exceeds the event's threshold; the event is detached
// and recycled either way.
func (t *Tracker) CloseEvent(key []byte, id uint64) bool {
	if len(key) > MaxKeySize {
		return false
	}
	hash := t.hash(key)
	now := t.clock.Now()

	var fired []firing
	found := false

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.index.visitBucket(hash, func(r *record) bool {
		if !t.match(key, r.key[:r.keyLen]) {
			return false
		}
		found = true
		r.endTime = now
		r.closeID = id
		r.reason = ReasonExplicit
		if r.callback != nil && now.Sub(r.startTime) > r.threshold {
			fired = append(fired, firing{cb: r.callback, ev: r.snapshot()})
		}
		t.cancelTimeoutLocked(r)
		t.pool.release(r)
		t.counters.closed.Add(1)
		return true
	})
	t.mu.Unlock()

	t.dispatch(fired)
	if !found {
		t.counters.notFound.Add(1)
	}
	return found
}

// Close cancels the garbage collector and every pending timeout, then
// force-retires all open events WITHOUT invoking their callbacks. It returns
// the number of events that were still open, which usually surfaces opens
// that were never matched by closes; a nonzero count is also logged.
//
// The tracker is unusable afterwards: OpenEvent returns ErrTrackerClosed,
// CloseEvent returns false, and a second Close returns ErrAlreadyClosed.
// Close must not be called from inside a callback.
func (t *Tracker) Close() (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrAlreadyClosed
	}
	t.closed = true

	pending := 0
	t.index.visitAll(func(r *record) bool {
		t.cancelTimeoutLocked(r)
		t.pool.release(r)
		pending++
		return true
	})
	t.pool = nil
	t.mu.Unlock()

	close(t.stop)
	t.gcDone.Wait()

	t.counters.pendingAtClose.Store(int64(pending))
	if pending > 0 {
		t.logger.Warn("events still pending at close",
			zap.Int("pending", pending))
	}
	return pending, nil
}

// SetGCPeriod changes how often the garbage collector sweeps and re-arms the
// next sweep immediately. Zero disables the collector until both settings
// are nonzero again.
func (t *Tracker) SetGCPeriod(d time.Duration) {
	t.mu.Lock()
	t.gcPeriod = d
	t.mu.Unlock()
	t.rearmGC()
}

// SetGCThreshold changes the age past which a sweep retires events and
// re-arms the next sweep immediately. Zero disables the collector until both
// settings are nonzero again.
func (t *Tracker) SetGCThreshold(d time.Duration) {
	t.mu.Lock()
	t.gcThreshold = d
	t.mu.Unlock()
	t.rearmGC()
}

// UserContext returns the opaque value supplied via WithUserContext.
func (t *Tracker) UserContext() any {
	return t.userCtx
}

// InFlight returns the number of currently open events.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.size()
}

// Metrics returns a snapshot of the tracker's counters.
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	inFlight := int64(t.index.size())
	var capacity int64
	if t.pool != nil {
		capacity = int64(t.pool.capacity())
	}
	t.mu.Unlock()

	return Metrics{
		Opened:         t.counters.opened.Load(),
		Full:           t.counters.full.Load(),
		Invalid:        t.counters.invalid.Load(),
		Closed:         t.counters.closed.Load(),
		Timeouts:       t.counters.timeouts.Load(),
		GCRetired:      t.counters.gcRetired.Load(),
		Evicted:        t.counters.evicted.Load(),
		NotFound:       t.counters.notFound.Load(),
		InFlight:       inFlight,
		Capacity:       capacity,
		PendingAtClose: t.counters.pendingAtClose.Load(),
	}
}

// dispatch runs retirement callbacks with the tracker lock released. The
// snapshots were taken under the lock, so slot reuse cannot affect them.
func (*Tracker) dispatch(firings []firing) {
	for _, f := range firings {
		f.cb(f.ev)
	}
}

// cancelTimeoutLocked stops the pending timeout goroutine, if any.
func (*Tracker) cancelTimeoutLocked(r *record) {
	if r.timerStop != nil {
		close(r.timerStop)
		r.timerStop = nil
	}
}

// timeoutWait is the per-event timeout scheduler: one goroutine armed at
// open, cancelled by retirement. On firing it marks the event timed out and
// runs the callback, but deliberately leaves the event in the index (the
// callback self-retires; see OpenEvent).
func (t *Tracker) timeoutWait(r *record, seq uint64, d time.Duration, stop chan struct{}) {
	select {
	case <-t.clock.After(d):
	case <-stop:
		return
	}

	t.mu.Lock()
	// The record may have been retired (and possibly recycled) between the
	// timer firing and the lock acquisition; the generation check catches
	// both cases.
	if t.closed || r.seq != seq || !r.live {
		t.mu.Unlock()
		return
	}
	r.reason = ReasonTimeout
	r.timeout = 0 // marks "already fired"
	r.timerStop = nil
	cb := r.callback
	snap := r.snapshot()
	t.mu.Unlock()

	t.counters.timeouts.Add(1)
	if cb != nil {
		cb(snap)
	}
}

// gcLoop is the self-rescheduling garbage collector: each sweep arms the
// next one, rather than running off a fixed-rate ticker, so a slow sweep
// never causes overlapping sweeps. While either setting is zero the loop
// parks until a rearm or shutdown.
func (t *Tracker) gcLoop() {
	defer t.gcDone.Done()
	for {
		t.mu.Lock()
		period := t.gcPeriod
		threshold := t.gcThreshold
		t.mu.Unlock()

		if period == 0 || threshold == 0 {
			select {
			case <-t.gcRearm:
				continue
			case <-t.stop:
				return
			}
		}

		select {
		case <-t.clock.After(period):
			t.gcSweep()
		case <-t.gcRearm:
			// Settings changed; re-arm with the new values.
		case <-t.stop:
			return
		}
	}
}

// gcSweep visits every open event and retires those older than threshold,
// firing their callbacks with ReasonGC. Younger events survive to the next
// sweep.
func (t *Tracker) gcSweep() {
	now := t.clock.Now()

	retired := 0
	var fired []firing
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	threshold := t.gcThreshold
	t.index.visitAll(func(r *record) bool {
		if now.Sub(r.startTime) <= threshold {
			return false
		}
		r.endTime = now
		r.reason = ReasonGC
		if r.callback != nil {
			fired = append(fired, firing{cb: r.callback, ev: r.snapshot()})
		}
		t.cancelTimeoutLocked(r)
		t.pool.release(r)
		retired++
		return true
	})
	t.mu.Unlock()

	if retired > 0 {
		t.counters.gcRetired.Add(int64(retired))
		t.logger.Debug("gc sweep retired events",
			zap.Int("retired", retired),
			zap.Duration("threshold", threshold))
	}
	t.dispatch(fired)
}

// rearmGC nudges the collector loop to re-read its settings. The channel is
// buffered; a pending nudge makes further ones redundant.
func (t *Tracker) rearmGC() {
	select {
	case t.gcRearm <- struct{}{}:
	default:
	}
}
