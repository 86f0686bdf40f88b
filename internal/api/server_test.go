package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adda-Baaj/phantombuster-relay/internal/domain"
	"github.com/Adda-Baaj/phantombuster-relay/pkg/phantombuster"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeBackend records arguments and returns canned values.
type fakeBackend struct {
	payload phantombuster.Payload
	err     error
	panics  bool

	op       string
	id       string
	mode     domain.OutputMode
	argument map[string]any
}

func (f *fakeBackend) result(op, id string) (phantombuster.Payload, error) {
	if f.panics {
		panic("boom")
	}
	f.op, f.id = op, id
	return f.payload, f.err
}

func (f *fakeBackend) ListAgents(context.Context) (phantombuster.Payload, error) {
	return f.result("list agents", "")
}

func (f *fakeBackend) AgentStatus(_ context.Context, id string) (phantombuster.Payload, error) {
	return f.result("agent status", id)
}

func (f *fakeBackend) AgentOutput(_ context.Context, id string, mode domain.OutputMode) (phantombuster.Payload, error) {
	f.mode = mode
	return f.result("agent output", id)
}

func (f *fakeBackend) LaunchAgent(_ context.Context, id string, argument map[string]any) (phantombuster.Payload, error) {
	f.argument = argument
	return f.result("launch agent", id)
}

func (f *fakeBackend) ListContainers(context.Context) (phantombuster.Payload, error) {
	return f.result("list containers", "")
}

func (f *fakeBackend) ContainerData(_ context.Context, id string) (phantombuster.Payload, error) {
	return f.result("container data", id)
}

func (f *fakeBackend) AgentResultObject(_ context.Context, id string) (phantombuster.Payload, error) {
	return f.result("result object", id)
}

func newTestServer(t *testing.T, backend Backend) *Server {
	t.Helper()
	srv, err := NewServer(backend, Options{}, nil)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestRoutesDispatchToBackend(t *testing.T) {
	cases := []struct {
		method, target, body string
		op, id               string
	}{
		{http.MethodGet, "/api/phantombuster/agents", "", "list agents", ""},
		{http.MethodGet, "/api/phantombuster/agents/a1", "", "agent status", "a1"},
		{http.MethodGet, "/api/phantombuster/agents/a1/output", "", "agent output", "a1"},
		{http.MethodPost, "/api/phantombuster/agents/launch", `{"agent_id":"a1"}`, "launch agent", "a1"},
		{http.MethodGet, "/api/phantombuster/containers", "", "list containers", ""},
		{http.MethodGet, "/api/phantombuster/containers/c1", "", "container data", "c1"},
		{http.MethodGet, "/api/phantombuster/agents/a1/results", "", "result object", "a1"},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			backend := &fakeBackend{payload: map[string]any{"ok": true}}
			rec := do(t, newTestServer(t, backend), tc.method, tc.target, tc.body)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
			assert.Equal(t, tc.op, backend.op)
			assert.Equal(t, tc.id, backend.id)
		})
	}
}

func TestAgentOutputModeQuery(t *testing.T) {
	backend := &fakeBackend{payload: map[string]any{}}
	srv := newTestServer(t, backend)

	do(t, srv, http.MethodGet, "/api/phantombuster/agents/a1/output", "")
	assert.Equal(t, domain.OutputMostRecent, backend.mode)

	do(t, srv, http.MethodGet, "/api/phantombuster/agents/a1/output?mode=", "")
	assert.Equal(t, domain.OutputMostRecent, backend.mode)

	do(t, srv, http.MethodGet, "/api/phantombuster/agents/a1/output?mode=all", "")
	assert.Equal(t, domain.OutputAll, backend.mode)
}

func TestLaunchAgentValidation(t *testing.T) {
	cases := map[string]string{
		"empty body":         ``,
		"malformed json":     `{"agent_id":`,
		"missing agent id":   `{"argument":{"a":1}}`,
		"blank agent id":     `{"agent_id":"   "}`,
		"argument not a map": `{"agent_id":"a1","argument":[1,2]}`,
		"agent id not text":  `{"agent_id":5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{payload: map[string]any{}}
			rec := do(t, newTestServer(t, backend), http.MethodPost, "/api/phantombuster/agents/launch", body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.NotEmpty(t, detailOf(t, rec))
			assert.Empty(t, backend.op, "backend must not be called")
		})
	}
}

func TestLaunchAgentForwardsArgument(t *testing.T) {
	backend := &fakeBackend{payload: map[string]any{"containerId": "c"}}
	srv := newTestServer(t, backend)

	rec := do(t, srv, http.MethodPost, "/api/phantombuster/agents/launch", `{"agent_id":"X","argument":{"count":5}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "X", backend.id)
	assert.Equal(t, map[string]any{"count": float64(5)}, backend.argument)

	rec = do(t, srv, http.MethodPost, "/api/phantombuster/agents/launch", `{"agent_id":"X","argument":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, backend.argument)
}

func TestErrorMapping(t *testing.T) {
	t.Run("remote error keeps status", func(t *testing.T) {
		backend := &fakeBackend{err: &phantombuster.RemoteError{Op: "get agent status", StatusCode: http.StatusNotFound, Message: "not found"}}
		rec := do(t, newTestServer(t, backend), http.MethodGet, "/api/phantombuster/agents/zzz", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		detail := detailOf(t, rec)
		assert.Contains(t, detail, "not found")
		assert.Contains(t, detail, "PhantomBuster API error")
	})

	t.Run("transport error is 500", func(t *testing.T) {
		backend := &fakeBackend{err: &phantombuster.TransportError{Op: "list agents", Err: errors.New("connection refused")}}
		rec := do(t, newTestServer(t, backend), http.MethodGet, "/api/phantombuster/agents", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, detailOf(t, rec), "connection refused")
	})

	t.Run("panic is recovered", func(t *testing.T) {
		rec := do(t, newTestServer(t, &fakeBackend{panics: true}), http.MethodGet, "/api/phantombuster/containers", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, detailOf(t, rec), "boom")
	})
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{payload: []any{}})

	rec := do(t, srv, http.MethodGet, "/api/phantombuster/agents", "")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/phantombuster/agents", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/phantombuster/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/phantombuster/agents", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCustomPrefix(t *testing.T) {
	srv, err := NewServer(&fakeBackend{payload: []any{}}, Options{Prefix: "relay/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/relay", srv.Prefix())

	rec := do(t, srv, http.MethodGet, "/relay/agents", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServerRequiresBackend(t *testing.T) {
	_, err := NewServer(nil, Options{}, nil)
	assert.Error(t, err)
}

// End-to-end through the real adapter against a fake remote service.
func TestRelayEndToEnd(t *testing.T) {
	bodies := map[string]string{
		"/agents/fetch-all":           `[{"id":"1","name":"a"}]`,
		"/agents/fetch":               `{"id":"1","status":"running"}`,
		"/agents/fetch-output":        `{"output":"<b>log</b> & more"}`,
		"/agents/launch":              `{"containerId":"42"}`,
		"/containers/fetch-all":       `[{"id":"c1"}]`,
		"/containers/fetch":           `{"id":"c1"}`,
		"/agents/fetch-result-object": `{"jsonURL":"https://x/r.json"}`,
	}
	var missing atomic.Bool
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if missing.Load() {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"not found"}`)
			return
		}
		_, _ = io.WriteString(w, bodies[r.URL.Path])
	}))
	defer remote.Close()

	client, err := phantombuster.NewClient(phantombuster.WithAPIKey("k"), phantombuster.WithBaseURL(remote.URL))
	require.NoError(t, err)
	srv := newTestServer(t, client)

	routes := []struct{ method, target, body, remotePath string }{
		{http.MethodGet, "/api/phantombuster/agents", "", "/agents/fetch-all"},
		{http.MethodGet, "/api/phantombuster/agents/1", "", "/agents/fetch"},
		{http.MethodGet, "/api/phantombuster/agents/1/output?mode=all", "", "/agents/fetch-output"},
		{http.MethodPost, "/api/phantombuster/agents/launch", `{"agent_id":"1"}`, "/agents/launch"},
		{http.MethodGet, "/api/phantombuster/containers", "", "/containers/fetch-all"},
		{http.MethodGet, "/api/phantombuster/containers/c1", "", "/containers/fetch"},
		{http.MethodGet, "/api/phantombuster/agents/1/results", "", "/agents/fetch-result-object"},
	}

	for _, rt := range routes {
		rec := do(t, srv, rt.method, rt.target, rt.body)
		require.Equal(t, http.StatusOK, rec.Code, rt.target)
		assert.JSONEq(t, bodies[rt.remotePath], rec.Body.String(), rt.target)
	}

	missing.Store(true)
	for _, rt := range routes {
		rec := do(t, srv, rt.method, rt.target, rt.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, rt.target)
		assert.Contains(t, detailOf(t, rec), "not found", rt.target)
	}
}

func TestRelayTimeoutIsServerError(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer remote.Close()

	client, err := phantombuster.NewClient(
		phantombuster.WithAPIKey("k"),
		phantombuster.WithBaseURL(remote.URL),
		phantombuster.WithTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	rec := do(t, newTestServer(t, client), http.MethodGet, "/api/phantombuster/containers", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, detailOf(t, rec), "PhantomBuster API error")
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{payload: []any{}})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
