package trackz

// eventPool is a fixed-capacity free list of event records, preallocated at
// tracker construction so the steady state never allocates per event.
//
// The pool is not internally synchronized: every method must be called with
// the tracker lock held.
type eventPool struct {
	free []*record
	cap  int
}

// newEventPool preallocates capacity records, all free.
func newEventPool(capacity int) *eventPool {
	p := &eventPool{
		free: make([]*record, 0, capacity),
		cap:  capacity,
	}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &record{})
	}
	return p
}

// acquire removes and returns one free record, or reports exhaustion.
// The caller must fully initialize the record before it becomes visible.
func (p *eventPool) acquire() (*record, bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	r := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	return r, true
}

// release zeroes the record and returns it to the free list. The generation
// counter survives the wipe (bumped) so stale timeout goroutines can detect
// that the slot was recycled.
func (p *eventPool) release(r *record) {
	seq := r.seq + 1
	*r = record{}
	r.seq = seq
	p.free = append(p.free, r)
}

// available returns the number of free records.
func (p *eventPool) available() int {
	return len(p.free)
}

// capacity returns the fixed pool size.
func (p *eventPool) capacity() int {
	return p.cap
}
