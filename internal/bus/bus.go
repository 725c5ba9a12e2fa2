// Package bus is the in-process notification fan-out. It relays ephemeral
// events to currently attached subscribers: at-most-once per subscriber,
// FIFO per subscriber channel, no replay for late joiners. The bus is
// constructed once at startup and injected wherever events are published.
package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Actions carried by events.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionRead   = "read"
)

// Event is a transient notification. Kind matches a record kind or a
// synthetic category such as "query"; Payload is a small summary, never a
// full foreign record.
type Event struct {
	Kind    string `json:"record_type"`
	Action  string `json:"action"`
	Payload any    `json:"data"`
}

// Subscriber is a live attachment to the bus. Events arrive on Events() in
// publish order until Unsubscribe.
type Subscriber struct {
	id string
	ch chan Event
}

// ID returns the handle used to unsubscribe.
func (s *Subscriber) ID() string { return s.id }

// Events returns the subscriber's delivery channel. It is closed on
// unsubscribe or bus close.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	buffer int
	closed bool
	logger *slog.Logger
}

// New creates a bus whose subscribers each get a delivery buffer of the
// given size (minimum 1).
func New(buffer int, logger *slog.Logger) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]*Subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe attaches a new subscriber. Events published before the call are
// never delivered to it.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan Event, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel. Unknown ids are
// ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}

// Publish delivers the event to every currently attached subscriber.
// Delivery is best-effort: a full subscriber buffer drops the event for
// that subscriber with a warning. Publishing with no subscribers is a no-op.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			b.logger.Warn("bus: dropping event for slow subscriber",
				"subscriber", sub.id, "record_type", e.Kind, "action", e.Action)
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches all subscribers and rejects further publishes. Called once
// at process shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
