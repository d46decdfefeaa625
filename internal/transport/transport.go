// Package transport executes single HTTP-shaped requests for the client core
// and classifies their failures for the queue processor.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport executes a single request and returns either the success payload
// or a raw failure for the classifier.
type Transport interface {
	// Send executes one request. On HTTP status >= 400 the returned error is
	// a *StatusError; on transport-level failure it is the raw client error.
	Send(ctx context.Context, method, url string, payload []byte, headers map[string]string) ([]byte, error)
}

// StatusError is a response received with a failure status.
type StatusError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.Status)
}

// HTTPTransport is the production Transport over net/http.
type HTTPTransport struct {
	client *http.Client
}

// DefaultTimeout bounds each request. Timeout handling belongs to the
// transport, not the queue.
const DefaultTimeout = 30 * time.Second

// NewHTTPTransport creates an HTTPTransport with the given per-request
// timeout. A zero timeout falls back to DefaultTimeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Send executes one request to completion or failure.
func (t *HTTPTransport) Send(ctx context.Context, method, url string, payload []byte, headers map[string]string) ([]byte, error) {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// Raw transport failure, left unwrapped for Classify.
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
