package events

import (
	"context"
	"sync"

	"github.com/latticekit/lattice/logger"
)

// DefaultBufferSize is the per-subscription channel buffer used when no
// explicit size is configured.
const DefaultBufferSize = 64

// Bus is a typed publish/subscribe channel keyed by event type. Delivery is
// at-most-once: events published before a subscription exists are dropped,
// and a subscriber whose buffer is full misses the event rather than
// blocking the publisher.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string][]*Subscription
	bufferSize int
	logger     logger.Logger
}

// BusOptions configures a Bus.
type BusOptions struct {
	// BufferSize is the per-subscription channel buffer. Zero means
	// DefaultBufferSize.
	BufferSize int
	Logger     logger.Logger
}

// NewBus creates a new event bus.
func NewBus(opts BusOptions) *Bus {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	if opts.Logger == nil {
		opts.Logger = logger.NewNoopLogger()
	}

	return &Bus{
		subs:       make(map[string][]*Subscription),
		bufferSize: opts.BufferSize,
		logger:     opts.Logger.Named("event-bus"),
	}
}

// Subscription is a live handle onto the multicast stream for one event type.
// It only sees events published after it was created.
//
// mu serializes delivery against teardown: a send never races the close of
// the channel, so publishers cannot panic on a concurrently closed handle.
type Subscription struct {
	bus       *Bus
	eventType string

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// C returns the receive channel. The channel is closed when the subscription
// is closed or the event type is torn down; a closed handle is inert.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// EventType returns the event type this subscription listens on.
func (s *Subscription) EventType() string {
	return s.eventType
}

// Close detaches the subscription from the bus and closes its channel.
// Closing an already closed subscription is a no-op.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.close()
}

// send delivers without blocking. It reports false when the event was
// dropped, either because the buffer is full or the subscription is closed.
func (s *Subscription) send(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}

// Subscribe returns a live multicast stream of future events of the given
// type. The channel for the type is created implicitly on first use.
func (b *Bus) Subscribe(eventType string) *Subscription {
	sub := &Subscription{
		bus:       b,
		eventType: eventType,
		ch:        make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.mu.Unlock()

	b.logger.Debug("subscribed to event type", logger.String("event_type", eventType))

	return sub
}

// Unsubscribe tears down the channel for the given event type. All existing
// subscriber handles for the type become inert.
func (b *Bus) Unsubscribe(eventType string) {
	b.mu.Lock()
	subs := b.subs[eventType]
	delete(b.subs, eventType)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	b.logger.Debug("unsubscribed event type",
		logger.String("event_type", eventType),
		logger.Int("subscribers", len(subs)),
	)
}

// Publish emits the event to all current subscribers of its type. Publishing
// with no subscribers is a no-op, not an error. Delivery never blocks: a
// subscriber with a full buffer misses the event.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs[event.Type]))
	copy(subs, b.subs[event.Type])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	delivered := 0

	for _, sub := range subs {
		if sub.send(event) {
			delivered++

			continue
		}

		b.logger.Warn("subscriber full or closed, event dropped",
			logger.String("event_type", event.Type),
			logger.String("event_id", event.ID),
		)
	}

	b.logger.Debug("event published",
		logger.String("event_type", event.Type),
		logger.String("event_id", event.ID),
		logger.Int("delivered", delivered),
	)

	return nil
}

// SubscriberCount returns the number of live subscriptions for an event type.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[eventType])
}

// remove detaches a single subscription without closing its channel.
func (b *Bus) remove(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[target.eventType]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.eventType] = append(subs[:i], subs[i+1:]...)

			break
		}
	}

	if len(b.subs[target.eventType]) == 0 {
		delete(b.subs, target.eventType)
	}
}
