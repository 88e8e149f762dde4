package event

import (
	"sync"

	"github.com/strayware/go-collar/internal/log"
)

// DefaultBuffer is the per-subscriber channel buffer size.
const DefaultBuffer = 256

// Subscription is one monitor's view of the bus. Events arrive on C in the
// order they were published. A subscriber that falls DefaultBuffer events
// behind starts losing events (counted in Dropped) rather than stalling
// delivery to everyone else.
type Subscription struct {
	name string
	ch   chan Event

	mu      sync.Mutex
	dropped uint64
}

// C returns the receive channel. It is closed when the subscription is
// cancelled or the bus shuts down.
func (s *Subscription) C() <-chan Event { return s.ch }

// Name returns the subscriber name used for logging.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many events were lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) markDropped() {
	s.mu.Lock()
	s.dropped++
	n := s.dropped
	s.mu.Unlock()
	if n == 1 || n%100 == 0 {
		log.Warn("bus: slow subscriber dropping events", "subscriber", s.name, "dropped", n)
	}
}

// Bus fans events out to all current subscribers. Publish never blocks:
// each subscriber has its own buffered channel, so one stuck monitor
// cannot hold up the rest. With no subscribers attached, events are
// simply discarded.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a named subscriber and returns its subscription.
func (b *Bus) Subscribe(name string) *Subscription {
	sub := &Subscription{name: name, ch: make(chan Event, DefaultBuffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers ev to every subscriber. Per-producer ordering is
// preserved because each producer publishes from a single goroutine.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.markDropped()
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down, closing every subscription channel.
// Publish becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
