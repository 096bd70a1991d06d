package trackz

import "testing"

func TestPoolAcquireToExhaustion(t *testing.T) {
	pool := newEventPool(3)

	if pool.available() != 3 {
		t.Errorf("Expected 3 free records, got %d", pool.available())
	}
	if pool.capacity() != 3 {
		t.Errorf("Expected capacity 3, got %d", pool.capacity())
	}

	records := make([]*record, 0, 3)
	for i := 0; i < 3; i++ {
		r, ok := pool.acquire()
		if !ok {
			t.Fatalf("Acquire %d failed with records free", i)
		}
		records = append(records, r)
	}

	if _, ok := pool.acquire(); ok {
		t.Error("Expected acquire to fail on an exhausted pool")
	}
	if pool.available() != 0 {
		t.Errorf("Expected 0 free records, got %d", pool.available())
	}

	pool.release(records[0])
	if _, ok := pool.acquire(); !ok {
		t.Error("Expected acquire to succeed after a release")
	}
}

func TestPoolReleaseZeroesRecord(t *testing.T) {
	pool := newEventPool(1)

	r, ok := pool.acquire()
	if !ok {
		t.Fatal("Acquire failed")
	}
	r.keyLen = copy(r.key[:], []byte("dirty"))
	r.keyHash = 99
	r.reason = ReasonExplicit
	r.live = true
	r.priv = "payload"

	pool.release(r)

	reused, ok := pool.acquire()
	if !ok {
		t.Fatal("Reacquire failed")
	}
	if reused != r {
		t.Fatal("Expected the same record back")
	}
	if reused.keyLen != 0 || reused.keyHash != 0 || reused.live || reused.priv != nil {
		t.Error("Expected record fields to be zeroed on release")
	}
	if reused.reason != ReasonNone {
		t.Errorf("Expected ReasonNone, got %v", reused.reason)
	}
}

func TestPoolReleaseBumpsGeneration(t *testing.T) {
	pool := newEventPool(1)

	r, _ := pool.acquire()
	seq := r.seq
	pool.release(r)

	reused, _ := pool.acquire()
	if reused.seq != seq+1 {
		t.Errorf("Expected generation %d after recycle, got %d", seq+1, reused.seq)
	}
}

func TestPoolZeroCapacity(t *testing.T) {
	pool := newEventPool(0)
	if _, ok := pool.acquire(); ok {
		t.Error("Expected acquire to fail on an empty pool")
	}
}
