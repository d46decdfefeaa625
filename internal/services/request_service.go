// Package services provides the mutation submission surface consumed by the
// UI layer.
package services

import (
	"context"

	"github.com/aidapp/aida/backend/internal/errors"
	"github.com/aidapp/aida/backend/internal/models"
	"github.com/aidapp/aida/backend/internal/processor"
	"github.com/aidapp/aida/backend/internal/queue"
	"github.com/aidapp/aida/backend/internal/transport"
)

// validMethods enumerates the mutation methods a queued request may carry.
var validMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// RequestService is the submission surface over the offline queue. Submission
// never blocks on connectivity: requests are always queued first, and the
// processor is triggered to drain them when possible.
type RequestService struct {
	queue     *queue.RequestQueue
	processor *processor.Processor
	transport transport.Transport
}

// NewRequestService creates the service over its collaborators.
func NewRequestService(q *queue.RequestQueue, p *processor.Processor, tr transport.Transport) *RequestService {
	return &RequestService{
		queue:     q,
		processor: p,
		transport: tr,
	}
}

// Enqueue queues a mutation and triggers a drain. A nil opts applies
// DefaultRequestOptions. Returns the assigned request id, or a QUEUE_FULL
// error when the queue is at capacity with nothing evictable.
func (s *RequestService) Enqueue(method, url string, payload []byte, opts *models.RequestOptions) (string, error) {
	if !validMethods[method] {
		return "", errors.New(errors.ErrInvalid, "unsupported request method: "+method)
	}
	if url == "" {
		return "", errors.New(errors.ErrInvalid, "request url is required")
	}

	if opts == nil {
		opts = models.DefaultRequestOptions()
	}

	id, err := s.queue.Enqueue(&models.QueuedRequest{
		URL:        url,
		Method:     method,
		Payload:    payload,
		Headers:    opts.Headers,
		Priority:   opts.Priority,
		Category:   opts.Category,
		MaxRetries: opts.MaxRetries,
	})
	if err != nil {
		return "", err
	}

	s.processor.Flush()
	return id, nil
}

// Preset helpers binding common mutation kinds to their default
// priority/category/retry budget. These defaults are part of the observable
// contract.

// EnqueueTaskCreate queues a task creation: medium priority, task category,
// 3 retries.
func (s *RequestService) EnqueueTaskCreate(url string, payload []byte) (string, error) {
	return s.Enqueue("POST", url, payload, &models.RequestOptions{
		Priority:   models.PriorityMedium,
		Category:   models.CategoryTask,
		MaxRetries: 3,
	})
}

// EnqueueEventCreate queues a calendar event creation: high priority, event
// category, 5 retries.
func (s *RequestService) EnqueueEventCreate(url string, payload []byte) (string, error) {
	return s.Enqueue("POST", url, payload, &models.RequestOptions{
		Priority:   models.PriorityHigh,
		Category:   models.CategoryEvent,
		MaxRetries: 5,
	})
}

// EnqueueConversationMessage queues a conversation message: low priority,
// conversation category, 2 retries.
func (s *RequestService) EnqueueConversationMessage(url string, payload []byte) (string, error) {
	return s.Enqueue("POST", url, payload, &models.RequestOptions{
		Priority:   models.PriorityLow,
		Category:   models.CategoryConversation,
		MaxRetries: 2,
	})
}

// Remove cancels a pending request by id.
func (s *RequestService) Remove(id string) bool {
	return s.queue.Remove(id)
}

// Clear empties the queue.
func (s *RequestService) Clear() {
	s.queue.Clear()
}

// Snapshot returns the pending requests in drain order.
func (s *RequestService) Snapshot() []*models.QueuedRequest {
	return s.queue.Snapshot()
}

// Stats returns the current queue statistics.
func (s *RequestService) Stats() queue.Stats {
	return s.queue.Stats()
}

// Subscribe registers a stats listener; it fires once immediately with the
// current snapshot and then on every queue mutation.
func (s *RequestService) Subscribe(fn queue.Listener) (unsubscribe func()) {
	return s.queue.Subscribe(fn)
}

// OnSessionInvalidated registers a callback for the auth-expired signal.
func (s *RequestService) OnSessionInvalidated(fn func()) (unsubscribe func()) {
	return s.processor.OnSessionInvalidated(fn)
}

// Flush triggers a drain of the pending queue.
func (s *RequestService) Flush() {
	s.processor.Flush()
}

// OnForeground is the app-foreground lifecycle hook.
func (s *RequestService) OnForeground() {
	s.processor.OnForeground()
}

// Login submits credentials directly, bypassing the queue. It executes
// exactly once: blind retry of credential submission risks account lockout
// and rate-limit bans, so any failure is classified and returned
// synchronously, never queued.
func (s *RequestService) Login(ctx context.Context, url string, payload []byte) ([]byte, error) {
	return s.sendDirect(ctx, url, payload)
}

// Register submits an account creation directly, bypassing the queue.
// Like Login it executes exactly once; automatic retry could create
// duplicate accounts.
func (s *RequestService) Register(ctx context.Context, url string, payload []byte) ([]byte, error) {
	return s.sendDirect(ctx, url, payload)
}

func (s *RequestService) sendDirect(ctx context.Context, url string, payload []byte) ([]byte, error) {
	body, err := s.transport.Send(ctx, "POST", url, payload, nil)
	if err != nil {
		return nil, transport.Classify(err)
	}
	return body, nil
}
