package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/phantombuster-relay/internal/domain"
	"github.com/Adda-Baaj/phantombuster-relay/internal/logger"
	"github.com/Adda-Baaj/phantombuster-relay/pkg/phantombuster"
	"github.com/gin-gonic/gin"
)

// DefaultPrefix groups the relay routes.
const DefaultPrefix = "/api/phantombuster"

// Backend is the remote API surface the facade forwards to.
type Backend interface {
	ListAgents(ctx context.Context) (phantombuster.Payload, error)
	AgentStatus(ctx context.Context, agentID string) (phantombuster.Payload, error)
	AgentOutput(ctx context.Context, agentID string, mode domain.OutputMode) (phantombuster.Payload, error)
	LaunchAgent(ctx context.Context, agentID string, argument map[string]any) (phantombuster.Payload, error)
	ListContainers(ctx context.Context) (phantombuster.Payload, error)
	ContainerData(ctx context.Context, containerID string) (phantombuster.Payload, error)
	AgentResultObject(ctx context.Context, agentID string) (phantombuster.Payload, error)
}

// Options tunes the HTTP server.
type Options struct {
	Addr            string
	Prefix          string
	ShutdownTimeout time.Duration
}

// Server exposes Backend operations as local HTTP routes.
type Server struct {
	opts    Options
	backend Backend
	log     logger.Logger
	engine  *gin.Engine
}

// NewServer builds the gin engine and registers every route.
func NewServer(backend Backend, opts Options, log logger.Logger) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend must not be nil")
	}
	opts.Prefix = "/" + strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	if opts.Prefix == "/" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		opts:    opts,
		backend: backend,
		log:     logger.Ensure(log),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.log), recovery(s.log))
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) { writeDetail(c, http.StatusNotFound, "route not found") })
	r.NoMethod(func(c *gin.Context) { writeDetail(c, http.StatusMethodNotAllowed, "method not allowed") })

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	g := r.Group(s.opts.Prefix)
	g.GET("/agents", s.handleListAgents)
	g.POST("/agents/launch", s.handleLaunchAgent)
	g.GET("/agents/:id", s.handleAgentStatus)
	g.GET("/agents/:id/output", s.handleAgentOutput)
	g.GET("/agents/:id/results", s.handleAgentResults)
	g.GET("/containers", s.handleListContainers)
	g.GET("/containers/:id", s.handleContainerData)
	return r
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Prefix returns the route group prefix in use.
func (s *Server) Prefix() string { return s.opts.Prefix }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start with a caller-provided listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.InfoObj("http server listening", "http_server", map[string]any{
		"addr":   ln.Addr().String(),
		"prefix": s.opts.Prefix,
	})

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.log.InfoObj("http server stopped", "reason", ctx.Err())
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
