// Package connectivity reports online/offline state to the queue processor.
package connectivity

import "sync"

// Provider reports connectivity and pushes change notifications.
type Provider interface {
	// IsConnected is a point query of the current state.
	IsConnected() bool

	// OnChange registers a callback invoked on every state transition.
	// The returned function unregisters it.
	OnChange(fn func(online bool)) (unsubscribe func())
}

// Monitor is a Provider driven by the platform shell, which feeds native
// reachability events in through SetOnline.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(online bool)
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online:    online,
		listeners: make(map[int]func(bool)),
	}
}

// IsConnected returns the current state.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a state change reported by the platform. Listeners are
// only notified on an actual transition; repeated reports of the same state
// are ignored.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}

// OnChange registers a change callback and returns its unsubscribe function.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}
