package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cbl315/opinion-builder-tools/internal/store"
)

// Loader pages through the markets API and seeds the store. A failed load
// leaves the store as it was; the live stream can still attach.
type Loader struct {
	client     *Client
	store      *store.Store
	logger     *slog.Logger
	pageSize   int
	maxMarkets int
}

// NewLoader creates a Loader. pageSize and maxMarkets fall back to sane
// defaults when non-positive.
func NewLoader(client *Client, st *store.Store, logger *slog.Logger, pageSize, maxMarkets int) *Loader {
	if pageSize <= 0 {
		pageSize = 200
	}
	if maxMarkets <= 0 {
		maxMarkets = 500
	}
	return &Loader{
		client:     client,
		store:      st,
		logger:     logger,
		pageSize:   pageSize,
		maxMarkets: maxMarkets,
	}
}

// Load fetches up to maxMarkets active markets and upserts them. It returns
// the number of topics seeded.
func (l *Loader) Load(ctx context.Context) (int, error) {
	loaded := 0
	for loaded < l.maxMarkets {
		limit := l.pageSize
		if remaining := l.maxMarkets - loaded; remaining < limit {
			limit = remaining
		}

		topics, err := l.client.GetTopics(ctx, limit, loaded)
		if err != nil {
			return loaded, fmt.Errorf("snapshot: load page at offset %d: %w", loaded, err)
		}
		if len(topics) == 0 {
			break
		}

		for _, t := range topics {
			l.store.UpsertStatic(t)
		}
		loaded += len(topics)

		l.logger.Debug("snapshot page loaded",
			"count", len(topics),
			"total", loaded,
		)

		// Short page means the listing is exhausted.
		if len(topics) < limit {
			break
		}
	}

	l.logger.Info("snapshot load complete", "topics", loaded)
	return loaded, nil
}
