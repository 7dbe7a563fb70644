// Package stream fans newly ingested events out to live subscribers.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/metrics"
)

// subscriberBuffer bounds how far a subscriber may lag before events are
// dropped for it.
const subscriberBuffer = 100

// Subscriber receives events published after it subscribed. There is no
// historical replay.
type Subscriber struct {
	ch chan *event.Event
}

// Events is the subscriber's receive channel.
func (s *Subscriber) Events() <-chan *event.Event {
	return s.ch
}

// Broadcaster pushes events to all current subscribers. Each subscriber's
// send is an independent non-blocking enqueue, so one slow consumer never
// stalls the write path or other consumers.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	dropped atomic.Uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan *event.Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	metrics.StreamSubscribers.Inc()
	return s
}

// Unsubscribe removes s from the broadcast set and closes its channel.
func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[s]
	if ok {
		delete(b.subs, s)
	}
	b.mu.Unlock()
	if ok {
		metrics.StreamSubscribers.Dec()
		close(s.ch)
	}
}

// Publish enqueues ev for every subscriber. A full subscriber buffer
// counts as a drop for that subscriber only.
func (b *Broadcaster) Publish(ev *event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
			metrics.StreamDropped.Inc()
		}
	}
}

// SubscriberCount returns the current broadcast set size.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns the total number of per-subscriber drops so far.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
