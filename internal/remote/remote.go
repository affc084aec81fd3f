// Package remote is the boundary to the remote sync endpoint.
//
// The engine treats the remote side as a black box that either acknowledges
// an operation or fails: any transport error, timeout, or non-success status
// is a retryable failure and feeds the replay agent's backoff bookkeeping.
// Deduplication on the remote side keys off (device_id, vector_clock) plus
// the operation type - this package sends that material but does not itself
// deduplicate.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/roach88/shelfsync/internal/model"
)

// DefaultTimeout is the hard per-attempt timeout. An attempt that exceeds it
// is treated like any other failure for retry purposes.
const DefaultTimeout = 10 * time.Second

// Client pushes one operation to the remote authority.
type Client interface {
	Push(ctx context.Context, op model.SyncOperation) error
}

// StatusError reports a non-success HTTP status from the sync endpoint.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d for %s", e.Status, e.Path)
}

// opPaths maps each operation type to its sync endpoint path.
var opPaths = map[model.OpType]string{
	model.OpAdd:          "/sync/watchlist/add",
	model.OpRemove:       "/sync/watchlist/remove",
	model.OpReviewAdd:    "/sync/reviews/add",
	model.OpReviewUpdate: "/sync/reviews/update",
	model.OpReviewDelete: "/sync/reviews/delete",
	model.OpReviewVote:   "/sync/reviews/vote",
}

// HTTPClient posts operations to a base URL, one endpoint per operation type.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout overrides the per-attempt timeout. Used by tests to keep
// failure paths fast.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// NewHTTPClient creates a client for the sync endpoint at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push sends the operation to its endpoint and returns nil only on a 2xx
// response within the timeout.
func (c *HTTPClient) Push(ctx context.Context, op model.SyncOperation) error {
	path, ok := opPaths[op.Type]
	if !ok {
		return fmt.Errorf("push: unknown operation type %q", op.Type)
	}

	body, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("push: marshal operation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", op.DeviceID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push %s: %w", path, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Path: path}
	}
	return nil
}
