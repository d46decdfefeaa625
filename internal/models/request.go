// Package models provides data model definitions for the Aida client core.
package models

import "encoding/json"

// RequestPriority determines cross-request ordering in the offline queue.
type RequestPriority string

const (
	PriorityHigh   RequestPriority = "high"
	PriorityMedium RequestPriority = "medium"
	PriorityLow    RequestPriority = "low"
)

// Rank returns the ordering rank of a priority band. Lower ranks drain first.
func (p RequestPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Valid reports whether the priority is one of the known bands.
func (p RequestPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// RequestCategory tags a queued request for reporting. It never affects
// ordering or retry eligibility.
type RequestCategory string

const (
	CategoryTask         RequestCategory = "task"
	CategoryEvent        RequestCategory = "event"
	CategoryConversation RequestCategory = "conversation"
	CategoryAuth         RequestCategory = "auth"
	CategoryOther        RequestCategory = "other"
)

// QueuedRequest represents a pending mutation awaiting replay.
type QueuedRequest struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Method     string            `json:"method"` // GET, POST, PUT, PATCH, DELETE
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Priority   RequestPriority   `json:"priority"`
	Category   RequestCategory   `json:"category"`
	CreatedAt  int64             `json:"created_at"` // unix seconds
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
}

// Clone returns a deep copy, so snapshots cannot mutate queue state.
func (r *QueuedRequest) Clone() *QueuedRequest {
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

// RequestOptions is the closed set of per-request knobs accepted at enqueue
// time. Anything not listed here is not configurable per request.
type RequestOptions struct {
	Priority   RequestPriority
	Category   RequestCategory
	MaxRetries int
	Headers    map[string]string
}

// DefaultRequestOptions returns the options applied when the caller passes nil.
func DefaultRequestOptions() *RequestOptions {
	return &RequestOptions{
		Priority:   PriorityMedium,
		Category:   CategoryOther,
		MaxRetries: 3,
	}
}
