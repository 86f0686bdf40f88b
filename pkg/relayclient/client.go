// Package relayclient talks to a running relay over its local HTTP routes.
package relayclient

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

	"github.com/Adda-Baaj/phantombuster-relay/pkg/httpclient"
)

const (
	// DefaultServer is where a locally started relay listens.
	DefaultServer = "http://127.0.0.1:8000"
	// DefaultPrefix is the relay route group.
	DefaultPrefix  = "/api/phantombuster"
	defaultTimeout = 30 * time.Second
)

// APIError is a non-2xx answer from the relay.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("relay status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay status %d: %s", e.StatusCode, e.Detail)
}

// Client calls the relay routes.
type Client struct {
	base string
	http httpclient.Client
}

type options struct {
	prefix  string
	timeout time.Duration
	http    httpclient.Client
}

// Option customizes a Client.
type Option func(*options)

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithPrefix overrides the route group.
func WithPrefix(p string) Option { return func(o *options) { o.prefix = p } }

// WithHTTPClient swaps the transport.
func WithHTTPClient(c httpclient.Client) Option { return func(o *options) { o.http = c } }

// New builds a client for the relay at server, e.g. "http://127.0.0.1:8000".
func New(server string, opts ...Option) (*Client, error) {
	o := options{prefix: DefaultPrefix, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		server = DefaultServer
	}
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid relay address %q", server)
	}
	if o.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if o.http == nil {
		o.http = httpclient.NewRestyClient(o.timeout)
	}

	prefix := "/" + strings.Trim(strings.TrimSpace(o.prefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	return &Client{base: server + prefix, http: o.http}, nil
}

// Agents lists every agent.
func (c *Client) Agents(ctx context.Context) (any, error) {
	return c.get(ctx, "/agents", nil)
}

// AgentStatus fetches one agent.
func (c *Client) AgentStatus(ctx context.Context, id string) (any, error) {
	return c.get(ctx, "/agents/"+url.PathEscape(id), nil)
}

// AgentOutput fetches agent output. An empty mode lets the relay pick its default.
func (c *Client) AgentOutput(ctx context.Context, id, mode string) (any, error) {
	var q map[string]string
	if mode = strings.TrimSpace(mode); mode != "" {
		q = map[string]string{"mode": mode}
	}
	return c.get(ctx, "/agents/"+url.PathEscape(id)+"/output", q)
}

// LaunchAgent starts an agent run.
func (c *Client) LaunchAgent(ctx context.Context, id string, argument map[string]any) (any, error) {
	body := map[string]any{"agent_id": id}
	if len(argument) > 0 {
		body["argument"] = argument
	}
	return c.do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.base + "/agents/launch",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: body,
	})
}

// Containers lists every container.
func (c *Client) Containers(ctx context.Context) (any, error) {
	return c.get(ctx, "/containers", nil)
}

// ContainerData fetches one container.
func (c *Client) ContainerData(ctx context.Context, id string) (any, error) {
	return c.get(ctx, "/containers/"+url.PathEscape(id), nil)
}

// AgentResults fetches the agent result object.
func (c *Client) AgentResults(ctx context.Context, id string) (any, error) {
	return c.get(ctx, "/agents/"+url.PathEscape(id)+"/results", nil)
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) (any, error) {
	return c.do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.base + path,
		Headers: map[string]string{"Accept": "application/json"},
		Query:   query,
	})
}

func (c *Client) do(ctx context.Context, req httpclient.Request) (any, error) {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Detail: detail(resp.Body())}
	}
	out, err := decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.URL, err)
	}
	return out, nil
}

func detail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	return strings.TrimSpace(string(body))
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}
