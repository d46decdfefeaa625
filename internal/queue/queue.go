// Package queue provides the persisted, priority-ordered request queue that
// lets the client keep accepting mutations while offline.
package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aidapp/aida/backend/internal/errors"
	"github.com/aidapp/aida/backend/internal/logging"
	"github.com/aidapp/aida/backend/internal/models"
	"github.com/aidapp/aida/backend/internal/store"
	"github.com/aidapp/aida/backend/internal/uuid"
)

const (
	// DefaultMaxSize caps the number of pending requests.
	DefaultMaxSize = 100

	// DefaultExpiry bounds how long an unprocessed request may survive.
	DefaultExpiry = 7 * 24 * time.Hour

	// storageKey is the persistent store key holding the serialized queue.
	storageKey = "request_queue"
)

// Config holds queue tuning knobs.
type Config struct {
	MaxSize int
	Expiry  time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxSize: DefaultMaxSize,
		Expiry:  DefaultExpiry,
	}
}

// RequestQueue is the in-memory, persisted queue of pending mutations.
// Entries are kept in drain order: all high before all medium before all low,
// FIFO within each band. Every mutating operation persists the full queue
// before returning.
type RequestQueue struct {
	mu       sync.RWMutex
	entries  []*models.QueuedRequest
	store    store.Store
	maxSize  int
	expiry   time.Duration
	notifier *Notifier
	now      func() time.Time
}

// New creates a RequestQueue backed by s, hydrates it from the store, and
// sweeps expired entries before any processing can begin.
func New(s store.Store, cfg *Config) (*RequestQueue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	q := &RequestQueue{
		store:    s,
		maxSize:  cfg.MaxSize,
		expiry:   cfg.Expiry,
		notifier: NewNotifier(),
		now:      time.Now,
	}

	if err := q.hydrate(); err != nil {
		return nil, err
	}

	if purged := q.SweepExpired(); purged > 0 {
		logging.Info("purged expired queue entries", map[string]interface{}{
			"purged": purged,
		})
	}

	return q, nil
}

// hydrate loads the persisted queue snapshot.
func (q *RequestQueue) hydrate() error {
	data, ok, err := q.store.Get(storageKey)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to load queue", err)
	}
	if !ok {
		return nil
	}

	var entries []*models.QueuedRequest
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to decode persisted queue", err)
	}

	q.entries = entries
	return nil
}

// Enqueue inserts a request into its priority band and returns its id.
// Fails with a QUEUE_FULL error when the queue is at capacity and holds no
// evictable low-priority entry. Never blocks on connectivity.
func (q *RequestQueue) Enqueue(req *models.QueuedRequest) (string, error) {
	q.mu.Lock()

	if req.ID == "" {
		req.ID = uuid.New()
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = q.now().Unix()
	}
	if !req.Priority.Valid() {
		req.Priority = models.PriorityMedium
	}

	if len(q.entries) >= q.maxSize {
		if !q.evictOldestLowLocked() {
			q.mu.Unlock()
			return "", &errors.AppError{
				Code:    errors.ErrQueueFull,
				Message: fmt.Sprintf("queue is full (max size: %d)", q.maxSize),
			}
		}
	}

	q.insertLocked(req)

	if err := q.persistLocked(); err != nil {
		// Roll back so memory and disk stay consistent.
		q.removeLocked(req.ID)
		q.mu.Unlock()
		return "", err
	}

	stats := q.statsLocked()
	q.mu.Unlock()

	logging.Debug("enqueued request", map[string]interface{}{
		"request_id": req.ID,
		"priority":   string(req.Priority),
		"category":   string(req.Category),
	})

	q.notifier.Publish(stats)
	return req.ID, nil
}

// insertLocked places req according to its band:
// high goes after the existing high entries, medium goes immediately before
// the first low entry, low is appended at the tail.
func (q *RequestQueue) insertLocked(req *models.QueuedRequest) {
	pos := len(q.entries)

	switch req.Priority {
	case models.PriorityHigh:
		pos = 0
		for pos < len(q.entries) && q.entries[pos].Priority == models.PriorityHigh {
			pos++
		}
	case models.PriorityMedium:
		for i, entry := range q.entries {
			if entry.Priority == models.PriorityLow {
				pos = i
				break
			}
		}
	}

	q.entries = append(q.entries, nil)
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = req
}

// evictOldestLowLocked removes the oldest low-priority entry to make room.
// Returns false when no low-priority entry exists.
func (q *RequestQueue) evictOldestLowLocked() bool {
	oldest := -1
	for i, entry := range q.entries {
		if entry.Priority != models.PriorityLow {
			continue
		}
		if oldest == -1 || entry.CreatedAt < q.entries[oldest].CreatedAt {
			oldest = i
		}
	}
	if oldest == -1 {
		return false
	}

	evicted := q.entries[oldest]
	q.entries = append(q.entries[:oldest], q.entries[oldest+1:]...)

	logging.Warn("evicted low-priority request to make room", map[string]interface{}{
		"request_id": evicted.ID,
	})
	return true
}

// Peek returns a copy of the head entry without removing it, or nil when the
// queue is empty.
func (q *RequestQueue) Peek() *models.QueuedRequest {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].Clone()
}

// Remove removes the entry with the given id regardless of position.
// Returns false when no such entry exists.
func (q *RequestQueue) Remove(id string) bool {
	q.mu.Lock()

	if !q.removeLocked(id) {
		q.mu.Unlock()
		return false
	}

	if err := q.persistLocked(); err != nil {
		logging.Error("failed to persist queue after remove", err, map[string]interface{}{
			"request_id": id,
		})
	}

	stats := q.statsLocked()
	q.mu.Unlock()

	q.notifier.Publish(stats)
	return true
}

func (q *RequestQueue) removeLocked(id string) bool {
	for i, entry := range q.entries {
		if entry.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Retry increments the entry's retry count and moves it from its current
// position to the tail of its own priority band, so one persistently-failing
// request cannot block the requests behind it.
func (q *RequestQueue) Retry(id string) error {
	q.mu.Lock()

	idx := -1
	for i, entry := range q.entries {
		if entry.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		q.mu.Unlock()
		return fmt.Errorf("request %s not found", id)
	}

	entry := q.entries[idx]
	entry.RetryCount++

	// Reinsert at the end of the entry's band.
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	pos := len(q.entries)
	for i, e := range q.entries {
		if e.Priority.Rank() > entry.Priority.Rank() {
			pos = i
			break
		}
	}
	q.entries = append(q.entries, nil)
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = entry

	err := q.persistLocked()
	stats := q.statsLocked()
	q.mu.Unlock()

	q.notifier.Publish(stats)
	return err
}

// Clear empties the queue.
func (q *RequestQueue) Clear() {
	q.mu.Lock()

	q.entries = nil
	if err := q.persistLocked(); err != nil {
		logging.Error("failed to persist cleared queue", err)
	}

	stats := q.statsLocked()
	q.mu.Unlock()

	q.notifier.Publish(stats)
}

// Snapshot returns a copy of the queue in drain order.
func (q *RequestQueue) Snapshot() []*models.QueuedRequest {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snapshot := make([]*models.QueuedRequest, 0, len(q.entries))
	for _, entry := range q.entries {
		snapshot = append(snapshot, entry.Clone())
	}
	return snapshot
}

// Len returns the number of pending entries.
func (q *RequestQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// SweepExpired purges entries older than the expiry window without executing
// them, then persists. Returns the number purged.
func (q *RequestQueue) SweepExpired() int {
	q.mu.Lock()

	cutoff := q.now().Add(-q.expiry).Unix()
	kept := q.entries[:0]
	purged := 0
	for _, entry := range q.entries {
		if entry.CreatedAt < cutoff {
			purged++
			continue
		}
		kept = append(kept, entry)
	}

	if purged == 0 {
		q.mu.Unlock()
		return 0
	}

	q.entries = kept
	if err := q.persistLocked(); err != nil {
		logging.Error("failed to persist queue after expiry sweep", err)
	}

	stats := q.statsLocked()
	q.mu.Unlock()

	q.notifier.Publish(stats)
	return purged
}

// persistLocked writes the full queue snapshot to the store synchronously,
// so a crash immediately after a mutation never loses queue state.
func (q *RequestQueue) persistLocked() error {
	entries := q.entries
	if entries == nil {
		entries = []*models.QueuedRequest{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to encode queue", err)
	}
	if err := q.store.Set(storageKey, data); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to persist queue", err)
	}
	return nil
}

// Stats returns the current derived view of the queue.
func (q *RequestQueue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.statsLocked()
}

// Subscribe registers a stats listener. The listener fires once immediately
// with the current snapshot, then on every subsequent queue mutation until
// the returned unsubscribe function is called.
func (q *RequestQueue) Subscribe(fn Listener) (unsubscribe func()) {
	return q.notifier.Subscribe(fn, q.Stats())
}
