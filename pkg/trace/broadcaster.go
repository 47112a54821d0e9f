package trace

import "sync"

// SubscriberBufferSize is the fixed ring-buffer capacity per
// subscriber. Publish never blocks: once a subscriber's buffer would
// overflow, the oldest buffered event for that subscriber is dropped.
const SubscriberBufferSize = 1024

// Broadcaster fans TraceEvents out to N independent subscribers.
// Publishing never blocks the publisher; a slow subscriber loses its
// oldest unread events rather than stalling ingestion, mirroring the
// register/unregister/broadcast goroutine-safe pattern used for
// WebSocket fan-out elsewhere in this codebase, generalized here to
// give each subscriber its own bounded, independently-lagging channel
// instead of one shared broadcast channel.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriberState
	nextID      uint64
}

type subscriberState struct {
	events chan TraceEvent
	lagged chan uint64
	closed bool
}

// NewBroadcaster returns a ready-to-use Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[uint64]*subscriberState)}
}

// Subscription is a live subscriber's view of the event stream.
type Subscription struct {
	b     *Broadcaster
	id    uint64
	state *subscriberState
}

// Subscribe registers a new subscriber. It observes only events
// published strictly after this call returns.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	state := &subscriberState{
		events: make(chan TraceEvent, SubscriberBufferSize),
		lagged: make(chan uint64, 1),
	}
	b.subscribers[id] = state

	return &Subscription{b: b, id: id, state: state}
}

// Events returns the channel of delivered events, in publish order.
func (s *Subscription) Events() <-chan TraceEvent {
	return s.state.events
}

// Lagged delivers a count of events dropped since the last lag
// notification, whenever this subscriber's buffer has overflowed. A
// subscriber observing a value here must resynchronize (in practice:
// drop its local state and re-list) because it missed a contiguous run
// of events.
func (s *Subscription) Lagged() <-chan uint64 {
	return s.state.lagged
}

// Close frees the subscription's buffer. Producers never retain
// references that would extend subscriber lifetime past Close.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if state, ok := s.b.subscribers[s.id]; ok {
		state.closed = true
		delete(s.b.subscribers, s.id)
		close(state.events)
	}
}

// Publish delivers event to every live subscriber in publish order.
// It never blocks: a subscriber whose buffer is full has its oldest
// buffered event dropped to make room, and is notified via Lagged.
func (b *Broadcaster) Publish(event TraceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, state := range b.subscribers {
		b.deliverLocked(state, event)
	}
}

func (b *Broadcaster) deliverLocked(state *subscriberState, event TraceEvent) {
	select {
	case state.events <- event:
		return
	default:
	}

	// Buffer full: drop the oldest event to make room, then deliver.
	select {
	case <-state.events:
	default:
	}

	select {
	case state.events <- event:
	default:
		// Another goroutine drained concurrently with us losing the
		// race; give up rather than spin, the event is simply lost.
	}

	// Fold any still-pending lag count into this one so the value the
	// subscriber reads is the total dropped since its last read. Only
	// publishers (serialized by b.mu) send on lagged, so after draining
	// it the send cannot fail.
	dropped := uint64(1)
	select {
	case pending := <-state.lagged:
		dropped += pending
	default:
	}
	state.lagged <- dropped
}

// SubscriberCount reports the number of live subscribers, for tests
// and diagnostics.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
