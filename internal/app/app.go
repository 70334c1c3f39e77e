// Package app provides the top-level application lifecycle for the sync
// engine. It wires the store, search index, subscription registry, snapshot
// loader, stream connection, and HTTP server, then runs them until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cbl315/opinion-builder-tools/internal/config"
	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/subs"
)

const shutdownTimeout = 10 * time.Second

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It seeds the store from the snapshot API,
// derives subscriptions, starts the stream connection and the HTTP server,
// and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps := Wire(a.cfg, a.logger)

	// A failed snapshot load is not fatal: the engine starts with an empty
	// store and serves whatever the feed can deliver for known markets once
	// a later restart seeds it.
	if _, err := deps.Loader.Load(ctx); err != nil {
		a.logger.WarnContext(ctx, "snapshot load failed, starting with current store",
			slog.String("error", err.Error()),
		)
	}

	seedSubscriptions(deps)
	a.logger.InfoContext(ctx, "subscriptions derived",
		slog.Int("topics", deps.Store.Len()),
		slog.Int("targets", deps.Registry.Len()),
	)

	if err := deps.Conn.Start(ctx); err != nil {
		return fmt.Errorf("app: start stream: %w", err)
	}
	defer deps.Conn.Stop()

	if deps.Server == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(deps.Server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return ctx.Err()
}

// seedSubscriptions derives one subscription set per tracked topic.
// Categorical markets group their outcomes under a root market, so they
// subscribe to price updates by rootMarketId; everything else subscribes per
// market and also receives trades and depth diffs.
func seedSubscriptions(deps *Dependencies) {
	for _, t := range deps.Store.GetAll() {
		if t.OutcomeType == domain.OutcomeCategorical {
			deps.Registry.Add(subs.Target{
				Channel:  subs.ChannelLastPrice,
				MarketID: t.MarketID,
				Root:     true,
			})
			continue
		}
		deps.Registry.Add(subs.Target{Channel: subs.ChannelLastPrice, MarketID: t.MarketID})
		deps.Registry.Add(subs.Target{Channel: subs.ChannelLastTrade, MarketID: t.MarketID})
		deps.Registry.Add(subs.Target{Channel: subs.ChannelDepthDiff, MarketID: t.MarketID})
	}
}
