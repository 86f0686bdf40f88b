package app

import (
	"context"
	"fmt"

	"github.com/Adda-Baaj/phantombuster-relay/internal/api"
	"github.com/Adda-Baaj/phantombuster-relay/internal/config"
	"github.com/Adda-Baaj/phantombuster-relay/internal/logger"
	"github.com/Adda-Baaj/phantombuster-relay/pkg/phantombuster"
	"github.com/gin-gonic/gin"
)

// Relay is the service runtime. It owns the single PhantomBuster client for the
// process lifetime and hands it to the HTTP facade.
type Relay struct {
	cfg    *config.Config
	client *phantombuster.Client
	server *api.Server
	log    logger.Logger
}

// NewRelay builds the runtime from config. A missing API key fails here, before
// anything listens.
func NewRelay(cfg *config.Config, log logger.Logger) (*Relay, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	client, err := phantombuster.NewClient(
		phantombuster.WithAPIKey(cfg.APIKey),
		phantombuster.WithBaseURL(cfg.BaseURL),
		phantombuster.WithTimeout(cfg.RequestTimeout),
		phantombuster.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("init phantombuster client: %w", err)
	}
	log.InfoObj("phantombuster client initialized", "phantombuster_client", map[string]any{
		"base_url":        client.BaseURL(),
		"timeout_seconds": int(client.Timeout().Seconds()),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := api.NewServer(client, api.Options{
		Addr:            cfg.HTTPAddr,
		Prefix:          cfg.RoutePrefix,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return &Relay{
		cfg:    cfg,
		client: client,
		server: server,
		log:    log,
	}, nil
}

// Server exposes the HTTP facade, mainly for tests.
func (r *Relay) Server() *api.Server {
	if r == nil {
		return nil
	}
	return r.server
}

// Run serves HTTP until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if r == nil || r.server == nil {
		return fmt.Errorf("relay is not initialized")
	}

	r.log.InfoObj("relay starting", "relay_state", map[string]any{
		"addr":   r.cfg.HTTPAddr,
		"prefix": r.server.Prefix(),
	})
	if err := r.server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	r.log.InfoObj("relay stopped", "reason", ctx.Err())
	return nil
}
