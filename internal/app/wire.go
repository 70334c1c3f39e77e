package app

import (
	"log/slog"

	"github.com/cbl315/opinion-builder-tools/internal/config"
	"github.com/cbl315/opinion-builder-tools/internal/obs"
	"github.com/cbl315/opinion-builder-tools/internal/query"
	"github.com/cbl315/opinion-builder-tools/internal/search"
	"github.com/cbl315/opinion-builder-tools/internal/server"
	"github.com/cbl315/opinion-builder-tools/internal/server/handler"
	"github.com/cbl315/opinion-builder-tools/internal/snapshot"
	"github.com/cbl315/opinion-builder-tools/internal/store"
	"github.com/cbl315/opinion-builder-tools/internal/stream"
	"github.com/cbl315/opinion-builder-tools/internal/subs"
)

// Dependencies bundles every component the application lifecycle needs. It is
// constructed by Wire; nothing here opens network connections, so there is no
// cleanup function: the stream and server are started and stopped by Run.
type Dependencies struct {
	Store    *store.Store
	Index    *search.Index
	Registry *subs.Registry
	Engine   *query.Engine
	Metrics  *obs.Metrics
	Loader   *snapshot.Loader
	Conn     *stream.Conn
	Server   *server.Server
}

// Wire constructs all concrete components from the given configuration.
func Wire(cfg *config.Config, logger *slog.Logger) *Dependencies {
	deps := &Dependencies{}

	deps.Index = search.NewIndex(cfg.Search.MaxDistance)
	deps.Store = store.New(deps.Index)
	deps.Registry = subs.NewRegistry()
	deps.Engine = query.New(deps.Store, deps.Index, cfg.Query.DefaultLimit, cfg.Query.MaxLimit)
	deps.Metrics = obs.NewMetrics(logger)

	deps.Loader = snapshot.NewLoader(
		snapshot.NewClient(cfg.Snapshot.BaseURL, cfg.Snapshot.ApiKey),
		deps.Store,
		logger,
		cfg.Snapshot.PageSize,
		cfg.Snapshot.MaxMarkets,
	)

	dispatcher := stream.NewDispatcher(deps.Store, deps.Metrics)
	deps.Conn = stream.New(
		&stream.WSDialer{URL: cfg.Feed.WsURL, APIKey: cfg.Feed.ApiKey},
		deps.Registry,
		dispatcher.Dispatch,
		deps.Metrics,
		stream.Config{
			HeartbeatInterval: cfg.Feed.HeartbeatInterval.Duration,
			LivenessTimeout:   cfg.Feed.LivenessTimeout.Duration,
			BackoffMin:        cfg.Feed.BackoffMin.Duration,
			BackoffMax:        cfg.Feed.BackoffMax.Duration,
		},
	)

	if cfg.Server.Enabled {
		deps.Server = server.NewServer(
			server.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
			},
			server.Handlers{
				Health: handler.NewHealthHandler(deps.Conn, deps.Metrics, deps.Store, logger),
				Topics: handler.NewTopicHandler(deps.Engine, logger),
			},
			logger,
		)
	}

	return deps
}
