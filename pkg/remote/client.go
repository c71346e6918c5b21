// Package remote is the HTTP client for the backend order API.
//
// The backend is the sole arbiter of who wins a contended order; this
// client only performs the calls and reports the canonical record the
// server returns. Fetch is idempotent and retries transient failures;
// mutating calls never retry — a failed action is terminal for that
// attempt and the user re-triggers it.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mpetrenko/orderlens/pkg/model"
)

var (
	// ErrConflict: the order is no longer available to this actor
	// (taken, advanced, or released by someone else).
	ErrConflict = errors.New("order no longer available")

	// ErrUnavailable: the server could not be reached.
	ErrUnavailable = errors.New("server unreachable")
)

// ActionRequest is the body of a mutating call. The correlation ID lets
// the backend tag the history entry it persists so the reconciler can
// match it without the legacy name-in-comment heuristic.
type ActionRequest struct {
	Comment       string     `json:"comment,omitempty"`
	ActorID       int64      `json:"actor_id"`
	ActorName     string     `json:"actor_name"`
	Role          model.Role `json:"role"`
	CorrelationID string     `json:"correlation_id"`
}

// Client talks to the backend order API.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	fetchR retryConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithFetchRetry overrides the retry policy for Fetch. Tests shrink the
// delays to keep runs fast.
func WithFetchRetry(cfg retryConfig) Option {
	return func(c *Client) { c.fetchR = cfg }
}

// NewClient builds a client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q missing scheme or host", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 15 * time.Second},
		fetchR: defaultRetryConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns the canonical order record. Idempotent; transient
// failures are retried with backoff.
func (c *Client) Fetch(ctx context.Context, orderID int64) (*model.OrderResource, error) {
	var out *model.OrderResource
	err := retryOp(c.fetchR, func() error {
		var err error
		out, err = c.do(ctx, http.MethodGet, c.path(orderID, ""), nil)
		return err
	})
	return out, err
}

// Take assigns the order to the acting employee.
func (c *Client) Take(ctx context.Context, orderID int64, req ActionRequest) (*model.OrderResource, error) {
	return c.do(ctx, http.MethodPost, c.path(orderID, "take"), &req)
}

// Release returns the order to the available pool.
func (c *Client) Release(ctx context.Context, orderID int64, req ActionRequest) (*model.OrderResource, error) {
	return c.do(ctx, http.MethodPost, c.path(orderID, "release"), &req)
}

// CompleteStage finishes the current processing stage.
func (c *Client) CompleteStage(ctx context.Context, orderID int64, req ActionRequest) (*model.OrderResource, error) {
	return c.do(ctx, http.MethodPost, c.path(orderID, "complete"), &req)
}

func (c *Client) path(orderID int64, action string) string {
	p := fmt.Sprintf("/api/orders/%d", orderID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body *ActionRequest) (*model.OrderResource, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	u := *c.base
	// Preserve any path prefix on the configured base URL.
	u.Path = strings.TrimSuffix(c.base.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var o model.OrderResource
		if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		return &o, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrConflict, readErrMsg(resp.Body))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &serverError{status: resp.StatusCode, msg: readErrMsg(resp.Body)}
	default:
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, readErrMsg(resp.Body))
	}
}

// serverError marks 5xx/429 responses so the fetch retry can identify
// them as transient.
type serverError struct {
	status int
	msg    string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.status, e.msg)
}

func readErrMsg(r io.Reader) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(raw)
}
