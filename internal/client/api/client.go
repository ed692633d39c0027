// Package api implements the HTTP transport of the echofeed client: a thin
// JSON-over-HTTPS gateway that attaches the bearer credential, classifies
// failures into sentinel errors, and decodes the response shapes the feed
// API is known to produce.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dvoronkov/echofeed/internal/logging"
)

// Result is the uniform outcome of a transport call. Every path through
// the gateway returns one; the transport never panics and never leaks raw
// HTTP errors to callers.
type Result struct {
	Success bool
	Data    json.RawMessage
	Err     error
}

// Decode unmarshals the response payload into v. Calling Decode on a
// failed result returns the result's error.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Failure wraps err into a failed Result.
func Failure(err error) Result {
	return Result{Err: err}
}

// Client performs raw HTTP calls against the feed API. Token handling and
// session invalidation stay with the caller: the token comes in per call,
// and onUnauthorized fires before a 401 result is returned.
type Client struct {
	baseURL        string
	http           *http.Client
	log            logging.Logger
	onUnauthorized func(ctx context.Context)
}

// New returns a Client for the given base URL. onUnauthorized may be nil.
func New(baseURL string, timeout time.Duration, log logging.Logger, onUnauthorized func(ctx context.Context)) *Client {
	return &Client{
		baseURL:        baseURL,
		http:           &http.Client{Timeout: timeout},
		log:            log,
		onUnauthorized: onUnauthorized,
	}
}

// errorBody is the error envelope the API uses on non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

// Do issues a single JSON request. A non-empty token is attached as a
// bearer credential. The returned Result is always fully classified:
// network failures map to ErrUnavailable, a 401 to ErrSessionExpired
// (after the onUnauthorized hook has run), and any other non-2xx status
// to ErrServerRejected carrying the server-provided message.
func (c *Client) Do(ctx context.Context, method, endpoint, token string, body any) Result {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Failure(fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return Failure(fmt.Errorf("building request: %w", err))
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "request failed", "method", method, "endpoint", endpoint, "request_id", requestID, "error", err)
		return Failure(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure(fmt.Errorf("%w: reading response: %v", ErrUnavailable, err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn(ctx, "credential rejected", "endpoint", endpoint, "request_id", requestID)
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return Failure(ErrSessionExpired)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return Failure(fmt.Errorf("%w: %s", ErrServerRejected, msg))
	}

	return Result{Success: true, Data: data}
}
