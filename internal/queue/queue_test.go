// Package queue tests for the persisted priority queue.
package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aidapp/aida/backend/internal/errors"
	"github.com/aidapp/aida/backend/internal/models"
	"github.com/aidapp/aida/backend/internal/store"
)

func newTestQueue(t *testing.T, cfg *Config) (*RequestQueue, *store.MemoryStore) {
	t.Helper()

	s := store.NewMemoryStore()
	q, err := New(s, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return q, s
}

func request(priority models.RequestPriority, category models.RequestCategory) *models.QueuedRequest {
	return &models.QueuedRequest{
		URL:        "https://api.example.com/v1/things",
		Method:     "POST",
		Payload:    json.RawMessage(`{}`),
		Priority:   priority,
		Category:   category,
		MaxRetries: 3,
	}
}

// TestEnqueue_AssignsID verifies id and timestamp assignment.
func TestEnqueue_AssignsID(t *testing.T) {
	q, _ := newTestQueue(t, nil)

	id, err := q.Enqueue(request(models.PriorityMedium, models.CategoryTask))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == "" {
		t.Error("Enqueue should assign an id")
	}

	head := q.Peek()
	if head.ID != id {
		t.Errorf("head id = %q, want %q", head.ID, id)
	}
	if head.CreatedAt == 0 {
		t.Error("Enqueue should assign a creation timestamp")
	}
}

// TestEnqueue_BandOrdering verifies high < medium < low with FIFO inside bands.
func TestEnqueue_BandOrdering(t *testing.T) {
	q, _ := newTestQueue(t, nil)

	order := []struct {
		priority models.RequestPriority
		label    string
	}{
		{models.PriorityLow, "L1"},
		{models.PriorityHigh, "H1"},
		{models.PriorityMedium, "M1"},
		{models.PriorityHigh, "H2"},
		{models.PriorityLow, "L2"},
		{models.PriorityMedium, "M2"},
	}

	labels := make(map[string]string)
	for _, step := range order {
		req := request(step.priority, models.CategoryOther)
		id, err := q.Enqueue(req)
		if err != nil {
			t.Fatalf("Enqueue %s failed: %v", step.label, err)
		}
		labels[id] = step.label
	}

	var got []string
	for _, entry := range q.Snapshot() {
		got = append(got, labels[entry.ID])
	}

	want := []string{"H1", "H2", "M1", "M2", "L1", "L2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot order = %v, want %v", got, want)
		}
	}
}

// TestEnqueue_Scenario_HighLowMedium verifies the A, C, B drain order.
func TestEnqueue_Scenario_HighLowMedium(t *testing.T) {
	q, _ := newTestQueue(t, nil)

	a, _ := q.Enqueue(request(models.PriorityHigh, models.CategoryOther))
	b, _ := q.Enqueue(request(models.PriorityLow, models.CategoryOther))
	c, _ := q.Enqueue(request(models.PriorityMedium, models.CategoryOther))

	snapshot := q.Snapshot()
	want := []string{a, c, b}
	for i, id := range want {
		if snapshot[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, snapshot[i].ID, id)
		}
	}
}

// TestEnqueue_EvictsOldestLow verifies capacity eviction.
func TestEnqueue_EvictsOldestLow(t *testing.T) {
	q, _ := newTestQueue(t, &Config{MaxSize: 3, Expiry: DefaultExpiry})

	oldLow := request(models.PriorityLow, models.CategoryOther)
	oldLow.CreatedAt = time.Now().Add(-time.Hour).Unix()
	oldLowID, _ := q.Enqueue(oldLow)

	q.Enqueue(request(models.PriorityLow, models.CategoryOther))
	q.Enqueue(request(models.PriorityHigh, models.CategoryOther))

	// At capacity; the oldest low entry should be evicted.
	if _, err := q.Enqueue(request(models.PriorityMedium, models.CategoryOther)); err != nil {
		t.Fatalf("Enqueue at capacity with low entry present should succeed: %v", err)
	}

	for _, entry := range q.Snapshot() {
		if entry.ID == oldLowID {
			t.Error("oldest low entry should have been evicted")
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len = %d, want 3", q.Len())
	}
}

// TestEnqueue_QueueFull verifies rejection when nothing is evictable.
func TestEnqueue_QueueFull(t *testing.T) {
	q, _ := newTestQueue(t, &Config{MaxSize: 2, Expiry: DefaultExpiry})

	q.Enqueue(request(models.PriorityHigh, models.CategoryOther))
	q.Enqueue(request(models.PriorityMedium, models.CategoryOther))

	_, err := q.Enqueue(request(models.PriorityHigh, models.CategoryOther))
	if err == nil {
		t.Fatal("Enqueue at capacity with no low entry should fail")
	}
	if !errors.Is(err, errors.ErrQueueFull) {
		t.Errorf("err = %v, want QUEUE_FULL", err)
	}
	if q.Len() != 2 {
		t.Errorf("failed enqueue should not change queue size, Len = %d", q.Len())
	}
}

// TestRemove verifies removal by id.
func TestRemove(t *testing.T) {
	q, _ := newTestQueue(t, nil)

	id, _ := q.Enqueue(request(models.PriorityMedium, models.CategoryTask))
	q.Enqueue(request(models.PriorityMedium, models.CategoryTask))

	if !q.Remove(id) {
		t.Error("Remove of existing entry should return true")
	}
	if q.Remove(id) {
		t.Error("Remove of missing entry should return false")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

// TestRetry_RepositionsWithinBand verifies the head-of-line avoidance move.
func TestRetry_RepositionsWithinBand(t *testing.T) {
	q, _ := newTestQueue(t, nil)

	m1, _ := q.Enqueue(request(models.PriorityMedium, models.CategoryOther))
	m2, _ := q.Enqueue(request(models.PriorityMedium, models.CategoryOther))
	low, _ := q.Enqueue(request(models.PriorityLow, models.CategoryOther))

	if err := q.Retry(m1); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	snapshot := q.Snapshot()
	want := []string{m2, m1, low}
	for i, id := range want {
		if snapshot[i].ID != id {
			t.Fatalf("position %d = %s, want %s (retried entry must stay in its band)", i, snapshot[i].ID, id)
		}
	}
	if snapshot[1].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", snapshot[1].RetryCount)
	}
}

// TestRetry_Missing verifies retrying an absent id fails.
func TestRetry_Missing(t *testing.T) {
	q, _ := newTestQueue(t, nil)
	if err := q.Retry("no-such-id"); err == nil {
		t.Error("Retry of missing id should fail")
	}
}

// TestClear verifies emptying the queue.
func TestClear(t *testing.T) {
	q, _ := newTestQueue(t, nil)

	q.Enqueue(request(models.PriorityHigh, models.CategoryEvent))
	q.Enqueue(request(models.PriorityLow, models.CategoryTask))
	q.Clear()

	if q.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", q.Len())
	}
}

// TestPersistence_ReloadPreservesOrder verifies a reloaded queue is identical.
func TestPersistence_ReloadPreservesOrder(t *testing.T) {
	s := store.NewMemoryStore()
	q, err := New(s, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, p := range []models.RequestPriority{
		models.PriorityLow, models.PriorityHigh, models.PriorityMedium, models.PriorityHigh,
	} {
		q.Enqueue(request(p, models.CategoryConversation))
	}
	before := q.Snapshot()

	// Simulate a restart on the same store.
	reloaded, err := New(s, nil)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	after := reloaded.Snapshot()

	if len(after) != len(before) {
		t.Fatalf("reloaded %d entries, want %d", len(after), len(before))
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Errorf("position %d: %s != %s", i, before[i].ID, after[i].ID)
		}
		if before[i].Priority != after[i].Priority || before[i].RetryCount != after[i].RetryCount {
			t.Errorf("position %d: fields changed across reload", i)
		}
	}
}

// TestPersistence_Synchronous verifies the store is written before Enqueue returns.
func TestPersistence_Synchronous(t *testing.T) {
	s := store.NewMemoryStore()
	q, _ := New(s, nil)

	id, _ := q.Enqueue(request(models.PriorityMedium, models.CategoryTask))

	data, ok, _ := s.Get("request_queue")
	if !ok {
		t.Fatal("queue must be persisted before Enqueue returns")
	}
	var persisted []*models.QueuedRequest
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("persisted queue is not valid JSON: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != id {
		t.Errorf("persisted snapshot = %+v, want the enqueued entry", persisted)
	}
}

// TestSweepExpired_PurgesStaleEntriesAtStartup verifies hydration + sweep.
func TestSweepExpired_PurgesStaleEntriesAtStartup(t *testing.T) {
	s := store.NewMemoryStore()

	stale := request(models.PriorityMedium, models.CategoryTask)
	stale.ID = "stale"
	stale.CreatedAt = time.Now().Add(-8 * 24 * time.Hour).Unix()

	fresh := request(models.PriorityMedium, models.CategoryTask)
	fresh.ID = "fresh"
	fresh.CreatedAt = time.Now().Unix()

	data, _ := json.Marshal([]*models.QueuedRequest{stale, fresh})
	s.Set("request_queue", data)

	q, err := New(s, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	snapshot := q.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "fresh" {
		t.Errorf("snapshot = %+v, want only the fresh entry", snapshot)
	}

	// The purge must also be persisted.
	stored, _, _ := s.Get("request_queue")
	var persisted []*models.QueuedRequest
	json.Unmarshal(stored, &persisted)
	if len(persisted) != 1 {
		t.Errorf("persisted %d entries after sweep, want 1", len(persisted))
	}
}

// TestSnapshot_IsACopy verifies callers cannot mutate queue state.
func TestSnapshot_IsACopy(t *testing.T) {
	q, _ := newTestQueue(t, nil)
	q.Enqueue(request(models.PriorityMedium, models.CategoryTask))

	snapshot := q.Snapshot()
	snapshot[0].RetryCount = 99

	if q.Peek().RetryCount != 0 {
		t.Error("mutating a snapshot must not affect the queue")
	}
}
