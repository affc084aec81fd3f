// Package connectivity tracks the host environment's binary online/offline
// signal and fans out transition events.
//
// The monitor is advisory: the replay agent consults it to fast-fail a drain
// cycle while offline (so the bounded retry budget is not wasted on attempts
// guaranteed to fail) and subscribes to it to trigger a drain when
// connectivity returns. It never gates correctness - durability of the queue
// does.
package connectivity

import "sync"

// Handler receives online/offline transitions.
type Handler func(online bool)

// Subscription is a live registration on the monitor.
type Subscription struct {
	monitor *Monitor
	id      int

	once sync.Once
}

// Unsubscribe detaches the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.monitor.remove(s.id)
	})
}

// Monitor holds the current connectivity state. The host environment feeds
// transitions in via SetOnline; everything else reads or subscribes.
// Construct one per process and inject it.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	nextID int
	subs   map[int]Handler
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]Handler),
	}
}

// IsOnline reports the current state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a state change and notifies subscribers.
// Setting the same state twice is a no-op - subscribers only see transitions.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	handlers := make([]Handler, 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(online)
	}
}

// Subscribe registers a transition handler.
func (m *Monitor) Subscribe(h Handler) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = h
	return &Subscription{monitor: m, id: id}
}

func (m *Monitor) remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}
