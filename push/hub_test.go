package push

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(time.Second):
		t.Fatalf("no event received")
		return nil
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe("alice@example.com")
	defer cancel1()
	ch2, cancel2 := h.Subscribe("alice@example.com")
	defer cancel2()

	h.Broadcast("alice@example.com", []byte("inbox"))

	if got := string(recv(t, ch1)); got != "inbox" {
		t.Fatalf("subscriber 1 got %q", got)
	}
	if got := string(recv(t, ch2)); got != "inbox" {
		t.Fatalf("subscriber 2 got %q", got)
	}
}

func TestBroadcastIsScopedToIdentity(t *testing.T) {
	h := NewHub()

	aliceCh, cancelAlice := h.Subscribe("alice@example.com")
	defer cancelAlice()
	bobCh, cancelBob := h.Subscribe("bob@example.com")
	defer cancelBob()

	h.Broadcast("alice@example.com", []byte("inbox"))

	recv(t, aliceCh)
	select {
	case <-bobCh:
		t.Fatalf("event leaked to another identity")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("alice@example.com")
	cancel()

	// The channel is closed; a broadcast after cancel must not panic.
	h.Broadcast("alice@example.com", []byte("inbox"))

	if _, open := <-ch; open {
		t.Fatalf("cancel did not close the channel")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()

	_, cancel := h.Subscribe("alice@example.com")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More broadcasts than the channel buffers; extras are dropped.
		for i := 0; i < 100; i++ {
			h.Broadcast("alice@example.com", []byte("inbox"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a slow subscriber")
	}
}
