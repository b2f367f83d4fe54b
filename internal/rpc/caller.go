package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-planner/dojo/internal/platform/httpx"
)

// Caller invokes a named method and decodes its message into dest.
type Caller interface {
	Call(ctx context.Context, method string, args any, dest any) error
}

// Local dispatches calls to a Registry in the same process. Arguments and
// results still travel as JSON so both callers behave identically.
type Local struct {
	registry *Registry
	metrics  *Metrics
}

// NewLocal constructs an in-process Caller.
func NewLocal(registry *Registry, metrics *Metrics) *Local {
	return &Local{registry: registry, metrics: metrics}
}

// Call implements Caller.
func (l *Local) Call(ctx context.Context, method string, args any, dest any) (err error) {
	start := time.Now()
	defer func() { l.metrics.observe(method, "local", start, err) }()

	raw, err := encodeArgs(args)
	if err != nil {
		return err
	}
	result, err := l.registry.Dispatch(ctx, method, raw)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}

// Client calls methods on a remote host over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	key     string
	secret  string
	metrics *Metrics
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends token credentials on every call.
func WithToken(key, secret string) ClientOption {
	return func(c *Client) {
		c.key = key
		c.secret = secret
	}
}

// WithMetrics records client-side call metrics.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient constructs a Client for the host at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("rpc: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rpc: base url must be http or https, got %q", baseURL)
	}
	c := &Client{baseURL: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call implements Caller.
func (c *Client) Call(ctx context.Context, method string, args any, dest any) (err error) {
	start := time.Now()
	defer func() { c.metrics.observe(method, "client", start, err) }()

	raw, err := encodeArgs(args)
	if err != nil {
		return err
	}
	endpoint := c.baseURL.JoinPath("api", "method", method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.key != "" {
		req.Header.Set("Authorization", TokenHeader(c.key, c.secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &RemoteError{Method: method, Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		var problem httpx.ProblemDetail
		if json.Unmarshal(body, &problem) == nil && problem.Title != "" {
			remote.Title = problem.Title
			remote.Detail = problem.Detail
		}
		return remote
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", ErrTransport, err)
	}
	if dest == nil || len(env.Message) == 0 {
		return nil
	}
	return json.Unmarshal(env.Message, dest)
}

func encodeArgs(args any) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return v, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return raw, nil
}
