// Package bus implements the cross-tab change channel: a same-origin
// broadcast mechanism that tells every open view of a user's data that the
// record store changed, so each view re-reads it.
//
// Delivery is fire-and-forget, at-most-once per currently subscribed
// receiver. A receiver that subscribes after a message was published never
// sees it - new views do a fresh store read on mount instead. The channel is
// a signal to re-read, never the record itself, and it must not be used as a
// lock or a source of truth.
package bus

import "sync"

// Topic names for the engine's broadcasts.
const (
	// TopicWatchlistChanged signals that a user's record store changed.
	TopicWatchlistChanged = "watchlist.changed"
	// TopicQueueDrained signals that a replay cycle removed operations.
	TopicQueueDrained = "queue.drained"
)

// Message is the broadcast envelope. Source identifies the sender so a
// publisher subscribed to its own topic can skip its own echoes.
type Message struct {
	Source string
	UserID string
	ItemID string
}

// Handler receives broadcast messages. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(Message)

// Subscription is a live registration on the bus. Unsubscribe detaches it;
// after Unsubscribe returns, the handler receives no further messages.
type Subscription struct {
	bus   *Bus
	topic string
	id    int

	once sync.Once
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
	})
}

// Bus is the coordinator owning the subscription set. Construct one per
// process and inject it - it is deliberately not a package-level singleton.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns its subscription.
func (b *Bus) Subscribe(topic string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h

	return &Subscription{bus: b, topic: topic, id: id}
}

// Publish delivers the message to every handler currently subscribed to the
// topic. There is no buffering and no redelivery: receivers that are not
// subscribed right now miss the message.
func (b *Bus) Publish(topic string, msg Message) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	// Dispatch outside the lock so handlers may subscribe or unsubscribe.
	for _, h := range handlers {
		h(msg)
	}
}

func (b *Bus) remove(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[topic]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.subs, topic)
		}
	}
}
