package trackz

import (
	"fmt"
	"testing"
)

func BenchmarkOpenClose(b *testing.B) {
	tracker, err := New(WithCapacity(1024))
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	defer tracker.Close()

	key := []byte("bench-key")

	b.Run("no-callback", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = tracker.OpenEvent(key, EventConfig{})
			tracker.CloseEvent(key, 0)
		}
	})

	b.Run("with-callback-below-threshold", func(b *testing.B) {
		cfg := EventConfig{
			Threshold: 1 << 40, // effectively never exceeded
			Callback:  func(Event) {},
		}
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = tracker.OpenEvent(key, cfg)
			tracker.CloseEvent(key, 0)
		}
	})
}

func BenchmarkOpenCloseDistinctKeys(b *testing.B) {
	tracker, err := New(WithCapacity(1024))
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	defer tracker.Close()

	keys := make([][]byte, 256)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("bench-key-%d", i))
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		_ = tracker.OpenEvent(key, EventConfig{})
		tracker.CloseEvent(key, 0)
	}
}

func TestNoCallbackEventsRetireSilently(t *testing.T) {
	tracker, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tracker.Close()

	// Nil callback with a zero threshold: the slow-close path is taken but
	// there is nothing to dispatch.
	if err := tracker.OpenEvent([]byte("silent"), EventConfig{}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !tracker.CloseEvent([]byte("silent"), 0) {
		t.Error("Expected close to find the event")
	}
	if tracker.InFlight() != 0 {
		t.Errorf("Expected 0 events in flight, got %d", tracker.InFlight())
	}
}
