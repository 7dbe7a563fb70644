package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/cagehq/cage/internal/event"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	ev := &event.Event{ID: "e1", EventType: event.Stop, SessionID: "s"}
	b.Publish(ev)

	for i, sub := range []*Subscriber{s1, s2} {
		select {
		case got := <-sub.Events():
			if got.ID != "e1" {
				t.Errorf("subscriber %d got %s", i, got.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestNoReplayOnSubscribe(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(&event.Event{ID: "before", EventType: event.Stop})

	s := b.Subscribe()
	defer b.Unsubscribe(s)

	select {
	case ev := <-s.Events():
		t.Errorf("got replayed event %s", ev.ID)
	default:
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe() // never drained
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// Overfill the slow subscriber's buffer; Publish must stay
	// non-blocking and keep delivering to the fast one.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish(&event.Event{ID: fmt.Sprintf("e%d", i), EventType: event.Stop})
			<-fast.Events()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if b.Dropped() == 0 {
		t.Error("expected drops for the slow subscriber")
	}
}

func TestUnsubscribeRemoves(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("count = %d", b.SubscriberCount())
	}
	b.Unsubscribe(s)
	if b.SubscriberCount() != 0 {
		t.Fatalf("count after unsubscribe = %d", b.SubscriberCount())
	}
	// Channel closes so a draining reader terminates.
	if _, ok := <-s.Events(); ok {
		t.Error("channel still open after unsubscribe")
	}
	// Double unsubscribe is a no-op.
	b.Unsubscribe(s)
}

func TestPublishAfterUnsubscribeDropsSilently(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe()
	b.Unsubscribe(s)
	b.Publish(&event.Event{ID: "late", EventType: event.Stop}) // must not panic
}
