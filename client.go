// Package storefront wires the cart and checkout machinery into one client
// a host application can embed: a synced cart mirror, a badge-count
// broadcaster, and the checkout orchestrator, all sharing one HTTP stack
// against the storefront backend.
package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopsphere/storefront-core/cart"
	"github.com/shopsphere/storefront-core/checkout"
	"github.com/shopsphere/storefront-core/gateway"
	"github.com/shopsphere/storefront-core/pkg/httpclient"
	"github.com/shopsphere/storefront-core/pkg/logger"
	"github.com/shopsphere/storefront-core/pkg/tracing"
	"github.com/shopsphere/storefront-core/session"
)

// Client is one user's storefront session: cart state, badge updates, and
// checkout. Create one per authenticated session; two clients never share
// state.
type Client struct {
	Cart     *cart.Store
	Badge    *cart.CountBroadcaster
	Checkout *checkout.Orchestrator

	cfg            *Config
	logger         *slog.Logger
	sess           session.Session
	shutdownTracer func(context.Context) error
}

// New builds a client from the given configuration, session, and payment
// gateway adapter. Call Start to sync the cart and begin badge polling, and
// Close when the session ends.
func New(cfg *Config, sess session.Session, adapter gateway.Adapter) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !sess.Valid() {
		return nil, fmt.Errorf("session owner is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("gateway adapter is required")
	}

	log := logger.New("storefront", cfg.LogLevel)

	tracingCfg := tracing.DefaultConfig("storefront-core")
	tracingCfg.Enabled = cfg.TracingEnabled
	tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
	shutdownTracer, err := tracing.InitTracer(context.Background(), tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	httpCfg.MaxRetries = cfg.MaxRetries
	base := httpclient.New(httpCfg)

	var doer cart.HTTPDoer = base
	if cfg.CircuitBreaker {
		doer = httpclient.NewCircuitBreakerClient(base,
			httpclient.DefaultCircuitBreakerConfig("storefront-backend"), log)
	}

	syncClient := cart.NewSyncClient(doer, cfg.APIBaseURL, log)
	store := cart.NewStore(syncClient, sess, cfg.shippingFee(), log)
	badge := cart.NewCountBroadcaster(syncClient, sess, log)
	store.OnChange(badge.NotifyCount)

	backend := checkout.NewBackendClient(doer, cfg.APIBaseURL, log)
	orch := checkout.NewOrchestrator(store, backend, adapter, log, checkout.Options{
		Key:           cfg.GatewayKey,
		Currency:      cfg.Currency,
		Merchant:      cfg.Merchant,
		Description:   cfg.Description,
		ThemeColor:    cfg.ThemeColor,
		VerifyTimeout: cfg.VerifyTimeout,
	})

	return &Client{
		Cart:           store,
		Badge:          badge,
		Checkout:       orch,
		cfg:            cfg,
		logger:         log,
		sess:           sess,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Start syncs the cart mirror from the backend and begins badge polling. A
// failed initial sync is returned but polling still starts; the next poll
// or mutation will reconcile.
func (c *Client) Start(ctx context.Context) error {
	err := c.Cart.Refresh(ctx)

	c.Badge.Start(c.cfg.PollInterval)

	if err != nil {
		c.logger.WarnContext(ctx, "initial cart sync failed",
			slog.String("owner", c.sess.Username),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Session returns the session this client was built for.
func (c *Client) Session() session.Session {
	return c.sess
}

// Close stops background work. It blocks until the badge poller has fully
// exited; no badge event is delivered after Close returns. Pending trace
// spans are flushed.
func (c *Client) Close() {
	c.Badge.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.shutdownTracer(ctx); err != nil {
		c.logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
	}
}
