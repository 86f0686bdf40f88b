package phantombuster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Adda-Baaj/phantombuster-relay/internal/domain"
	"github.com/Adda-Baaj/phantombuster-relay/pkg/httpclient"
	"github.com/joho/godotenv"
)

const (
	// APIKeyEnv is the environment variable consulted when no key is passed explicitly.
	APIKeyEnv = "PHANTOMBUSTER_API_KEY"
	// APIKeyHeader carries the credential on every remote call.
	APIKeyHeader = "X-Phantombuster-Key"

	DefaultBaseURL = "https://api.phantombuster.com/api/v2"
	DefaultTimeout = 30 * time.Second

	pathAgentsFetchAll     = "/agents/fetch-all"
	pathAgentsFetch        = "/agents/fetch"
	pathAgentsFetchOutput  = "/agents/fetch-output"
	pathAgentsLaunch       = "/agents/launch"
	pathAgentsResultObject = "/agents/fetch-result-object"
	pathContainersFetchAll = "/containers/fetch-all"
	pathContainersFetch    = "/containers/fetch"
)

// Payload is a decoded JSON document relayed without interpretation.
// Objects decode to map[string]any, arrays to []any and numbers to json.Number.
type Payload = any

// Client talks to the PhantomBuster v2 REST API. It is immutable after construction
// and safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	headers map[string]string
	http    httpclient.Client
	log     Logger
}

type options struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	http    httpclient.Client
	log     Logger
}

// Option configures a Client.
type Option func(*options)

// WithAPIKey sets the credential explicitly instead of reading it from the environment.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithBaseURL overrides the remote API root.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = u } }

// WithTimeout bounds every remote call.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithHTTPClient injects the transport, mainly for tests.
func WithHTTPClient(c httpclient.Client) Option { return func(o *options) { o.http = c } }

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l Logger) Option { return func(o *options) { o.log = l } }

// NewClient builds a Client. It fails with ErrMissingAPIKey when no credential is
// available from the options, the environment or a local .env file.
func NewClient(opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	key := resolveAPIKey(o.apiKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := o.http
	if transport == nil {
		transport = httpclient.NewRestyClient(timeout)
	}

	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		headers: map[string]string{
			APIKeyHeader:   key,
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		http: transport,
		log:  ensureLogger(o.log),
	}, nil
}

func resolveAPIKey(explicit string) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key
	}
	if env, err := godotenv.Read(); err == nil {
		return strings.TrimSpace(env[APIKeyEnv])
	}
	return ""
}

// BaseURL returns the remote API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// ListAgents returns every agent (phantom) of the account.
func (c *Client) ListAgents(ctx context.Context) (Payload, error) {
	return c.call(ctx, "list agents", http.MethodGet, pathAgentsFetchAll, nil, nil)
}

// AgentStatus returns the record of a single agent.
func (c *Client) AgentStatus(ctx context.Context, agentID string) (Payload, error) {
	id, err := requireID("get agent status", agentID)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "get agent status", http.MethodGet, pathAgentsFetch, map[string]string{"id": id}, nil)
}

// AgentOutput returns the output of an agent. A blank mode means most-recent.
func (c *Client) AgentOutput(ctx context.Context, agentID string, mode domain.OutputMode) (Payload, error) {
	id, err := requireID("get agent output", agentID)
	if err != nil {
		return nil, err
	}
	query := map[string]string{
		"id":   id,
		"mode": string(mode.OrDefault()),
	}
	return c.call(ctx, "get agent output", http.MethodGet, pathAgentsFetchOutput, query, nil)
}

// LaunchAgent starts an agent. The argument is sent only when it has entries.
func (c *Client) LaunchAgent(ctx context.Context, agentID string, argument map[string]any) (Payload, error) {
	id, err := requireID("launch agent", agentID)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "launch agent", http.MethodPost, pathAgentsLaunch, nil, launchPayload(id, argument))
}

func launchPayload(id string, argument map[string]any) map[string]any {
	payload := map[string]any{"id": id}
	if len(argument) > 0 {
		payload["argument"] = argument
	}
	return payload
}

// ListContainers returns every result container of the account.
func (c *Client) ListContainers(ctx context.Context) (Payload, error) {
	return c.call(ctx, "list containers", http.MethodGet, pathContainersFetchAll, nil, nil)
}

// ContainerData returns container metadata, not the scraped data itself.
func (c *Client) ContainerData(ctx context.Context, containerID string) (Payload, error) {
	id, err := requireID("get container data", containerID)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "get container data", http.MethodGet, pathContainersFetch, map[string]string{"id": id}, nil)
}

// AgentResultObject returns the result locator of an agent (CSV/JSON download URLs).
func (c *Client) AgentResultObject(ctx context.Context, agentID string) (Payload, error) {
	id, err := requireID("get agent result object", agentID)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "get agent result object", http.MethodGet, pathAgentsResultObject, map[string]string{"id": id}, nil)
}

func requireID(op, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingID)
	}
	return id, nil
}

// call issues exactly one request. There are no retries.
func (c *Client) call(ctx context.Context, op, method, path string, query map[string]string, body any) (Payload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: c.headers,
		Query:   query,
		Body:    body,
	})
	if err != nil {
		transportErr := &TransportError{Op: op, Err: err}
		c.log.WarnObj("phantombuster call failed", "phantombuster_error", map[string]any{
			"op":         op,
			"path":       path,
			"error":      err.Error(),
			"timeout":    transportErr.Timeout(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return nil, transportErr
	}

	status := resp.StatusCode()
	raw := resp.Body()
	c.log.DebugObj("phantombuster call completed", "phantombuster_call", map[string]any{
		"op":         op,
		"path":       path,
		"status":     status,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &RemoteError{
			Op:         op,
			StatusCode: status,
			Message:    remoteMessage(status, raw),
			Body:       raw,
		}
	}

	payload, err := decodePayload(raw)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return payload, nil
}

func decodePayload(raw []byte) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("decode response: empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode response: trailing data after JSON document")
	}
	return out, nil
}
