package trackz

import (
	"bytes"
	"testing"
	"time"
)

func TestCloseReasonString(t *testing.T) {
	cases := []struct {
		reason CloseReason
		want   string
	}{
		{ReasonNone, "none"},
		{ReasonExplicit, "explicit"},
		{ReasonTimeout, "timeout"},
		{ReasonGC, "gc"},
		{ReasonDuplicate, "duplicate"},
		{CloseReason(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.reason.String(); got != c.want {
			t.Errorf("Expected %q, got %q", c.want, got)
		}
	}
}

func TestEventElapsed(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	ev := Event{StartTime: start, EndTime: start.Add(250 * time.Millisecond)}
	if ev.Elapsed() != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", ev.Elapsed())
	}

	// Timeout snapshots carry no end time.
	unfinished := Event{StartTime: start}
	if unfinished.Elapsed() != 0 {
		t.Errorf("Expected 0 for an unstamped end time, got %v", unfinished.Elapsed())
	}
}

func TestSnapshotCopiesKey(t *testing.T) {
	r := &record{}
	r.keyLen = copy(r.key[:], []byte("original"))
	r.keyHash = 11

	snap := r.snapshot()

	// Mutating the record afterwards must not show through the snapshot.
	copy(r.key[:], []byte("clobbered"))
	if !bytes.Equal(snap.Key, []byte("original")) {
		t.Errorf("Snapshot key aliased the record buffer: %q", snap.Key)
	}
}

func TestDefaultHashAndMatch(t *testing.T) {
	a := []byte("same-key")
	b := []byte("same-key")
	c := []byte("other-key")

	if DefaultHash(a) != DefaultHash(b) {
		t.Error("Expected equal keys to hash equally")
	}
	if !DefaultMatch(a, b) {
		t.Error("Expected equal keys to match")
	}
	if DefaultMatch(a, c) {
		t.Error("Expected distinct keys not to match")
	}
}
