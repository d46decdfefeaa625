// Package processor drains the offline request queue against the transport.
//
// Delivery is at-least-once: if the process crashes between a successful send
// and the persisted removal of the entry, the request is replayed on the next
// drain. No idempotency key or dedup is attached, so the server may observe
// duplicate effects for that window.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aidapp/aida/backend/internal/connectivity"
	"github.com/aidapp/aida/backend/internal/errors"
	"github.com/aidapp/aida/backend/internal/logging"
	"github.com/aidapp/aida/backend/internal/queue"
	"github.com/aidapp/aida/backend/internal/transport"
)

// CredentialStore clears stored session credentials when the server reports
// the session expired.
type CredentialStore interface {
	Clear() error
}

// Config holds processor tuning knobs.
type Config struct {
	// RetryDelay is an optional pause after a retryable failure before the
	// drain loop continues. Zero means no pause.
	RetryDelay time.Duration
}

// maxRetryDelay caps the configured pause.
const maxRetryDelay = time.Hour

// Processor owns the single drain flow over the request queue. Concurrent
// triggers coalesce into one active drain; a trigger arriving while already
// draining is a no-op.
type Processor struct {
	queue       *queue.RequestQueue
	transport   transport.Transport
	conn        connectivity.Provider
	credentials CredentialStore
	retryDelay  time.Duration

	mu       sync.Mutex
	draining bool

	sessionMu        sync.Mutex
	sessionNextID    int
	sessionListeners map[int]func()

	unsubscribeConn func()
}

// DrainResult summarizes one full drain from idle to idle.
type DrainResult struct {
	Sent    int // removed after a successful send
	Retried int // repositioned for another attempt
	Dropped int // removed without success (non-retryable or exhausted)
}

// New creates a Processor and registers the connectivity-restored trigger.
func New(q *queue.RequestQueue, tr transport.Transport, conn connectivity.Provider, credentials CredentialStore, cfg *Config) *Processor {
	p := &Processor{
		queue:            q,
		transport:        tr,
		conn:             conn,
		credentials:      credentials,
		sessionListeners: make(map[int]func()),
	}
	if cfg != nil {
		p.retryDelay = cfg.RetryDelay
		if p.retryDelay > maxRetryDelay {
			p.retryDelay = maxRetryDelay
		}
	}

	p.unsubscribeConn = conn.OnChange(func(online bool) {
		if online {
			p.Flush()
		}
	})

	return p
}

// Close unregisters the connectivity trigger.
func (p *Processor) Close() {
	if p.unsubscribeConn != nil {
		p.unsubscribeConn()
	}
}

// Flush triggers a drain without waiting for it. Safe to call from any
// goroutine; duplicate triggers while draining are dropped.
func (p *Processor) Flush() {
	go p.Drain(context.Background())
}

// OnForeground is the app-returned-to-foreground trigger.
func (p *Processor) OnForeground() {
	p.Flush()
}

// Draining reports whether a drain is currently active.
func (p *Processor) Draining() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draining
}

// Drain runs the drain loop to completion: while online and the queue is
// non-empty, send the head entry, then remove, reposition, or drop it based
// on the classified outcome. Returns an error if a drain is already active.
func (p *Processor) Drain(ctx context.Context) (*DrainResult, error) {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return nil, fmt.Errorf("drain already in progress")
	}
	p.draining = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.draining = false
		p.mu.Unlock()
	}()

	result := &DrainResult{}

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// Connectivity can drop mid-drain; stop immediately rather than
		// burning attempts that cannot succeed.
		if !p.conn.IsConnected() {
			break
		}

		head := p.queue.Peek()
		if head == nil {
			break
		}

		_, err := p.transport.Send(ctx, head.Method, head.URL, head.Payload, head.Headers)
		if err == nil {
			p.queue.Remove(head.ID)
			result.Sent++
			logging.Debug("request sent", map[string]interface{}{
				"request_id": head.ID,
			})
			continue
		}

		appErr := transport.Classify(err)

		switch {
		case appErr.Code == errors.ErrAuthExpired:
			p.handleAuthExpired(head.ID)
			result.Dropped++

		case appErr.Retryable && head.RetryCount < head.MaxRetries:
			if retryErr := p.queue.Retry(head.ID); retryErr != nil {
				logging.Error("failed to reposition request for retry", retryErr, map[string]interface{}{
					"request_id": head.ID,
				})
			}
			result.Retried++
			logging.Info("request failed, will retry", map[string]interface{}{
				"request_id": head.ID,
				"code":       string(appErr.Code),
				"retry":      head.RetryCount + 1,
				"max":        head.MaxRetries,
			})
			if p.retryDelay > 0 {
				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(p.retryDelay):
				}
			}

		default:
			p.queue.Remove(head.ID)
			result.Dropped++
			logging.Warn("request dropped", map[string]interface{}{
				"request_id": head.ID,
				"code":       string(appErr.Code),
				"retryable":  appErr.Retryable,
				"retries":    head.RetryCount,
			})
		}
	}

	return result, nil
}

// handleAuthExpired removes the entry, clears stored credentials, and raises
// the session-invalidated signal to the caller layer.
func (p *Processor) handleAuthExpired(id string) {
	p.queue.Remove(id)

	if p.credentials != nil {
		if err := p.credentials.Clear(); err != nil {
			logging.Error("failed to clear session credentials", err)
		}
	}

	logging.Warn("session expired, credentials cleared", map[string]interface{}{
		"request_id": id,
	})

	p.sessionMu.Lock()
	listeners := make([]func(), 0, len(p.sessionListeners))
	for _, fn := range p.sessionListeners {
		listeners = append(listeners, fn)
	}
	p.sessionMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnSessionInvalidated registers a callback fired when an auth-expired
// response invalidates the session. The returned function unregisters it.
func (p *Processor) OnSessionInvalidated(fn func()) (unsubscribe func()) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	id := p.sessionNextID
	p.sessionNextID++
	p.sessionListeners[id] = fn

	return func() {
		p.sessionMu.Lock()
		defer p.sessionMu.Unlock()
		delete(p.sessionListeners, id)
	}
}
