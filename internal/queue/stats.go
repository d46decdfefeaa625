// Queue statistics and the subscriber registry that publishes them.
package queue

import (
	"sync"

	"github.com/aidapp/aida/backend/internal/models"
)

// Stats is a read-only snapshot of queue state, recomputed after every
// mutation.
type Stats struct {
	Total           int                              `json:"total"`
	ByCategory      map[models.RequestCategory]int   `json:"by_category"`
	OldestCreatedAt int64                            `json:"oldest_created_at"` // 0 when empty
	NewestCreatedAt int64                            `json:"newest_created_at"` // 0 when empty
}

// statsLocked derives Stats from the current entries. Callers hold q.mu.
func (q *RequestQueue) statsLocked() Stats {
	stats := Stats{
		Total:      len(q.entries),
		ByCategory: make(map[models.RequestCategory]int),
	}

	for _, entry := range q.entries {
		stats.ByCategory[entry.Category]++
		if stats.OldestCreatedAt == 0 || entry.CreatedAt < stats.OldestCreatedAt {
			stats.OldestCreatedAt = entry.CreatedAt
		}
		if entry.CreatedAt > stats.NewestCreatedAt {
			stats.NewestCreatedAt = entry.CreatedAt
		}
	}

	return stats
}

// Listener receives stats snapshots.
type Listener func(Stats)

// Notifier is a publish/subscribe registry for queue stats.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and immediately invokes it once with current.
// The returned function unregisters fn; calling it more than once is safe.
func (n *Notifier) Subscribe(fn Listener, current Stats) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	fn(current)

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Publish delivers stats to every active listener.
func (n *Notifier) Publish(stats Stats) {
	n.mu.Lock()
	listeners := make([]Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(stats)
	}
}
