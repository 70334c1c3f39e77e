package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cbl315/opinion-builder-tools/internal/obs"
	"github.com/cbl315/opinion-builder-tools/internal/stream"
)

// ConnStatus reports the live state of the feed connection.
type ConnStatus interface {
	Status() stream.Status
}

// StatsSource exposes counters collected since startup.
type StatsSource interface {
	Snapshot() obs.Stats
}

// TopicCounter reports how many topics the store tracks.
type TopicCounter interface {
	Len() int
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	conn   ConnStatus
	stats  StatsSource
	topics TopicCounter
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided dependencies.
func NewHealthHandler(conn ConnStatus, stats StatsSource, topics TopicCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		conn:   conn,
		stats:  stats,
		topics: topics,
		logger: logger,
	}
}

// healthResponse is the body of GET /api/health. The service reports
// "degraded" rather than an error status while the feed is down: queries keep
// serving the last known state.
type healthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Topics    int           `json:"topics"`
	Stream    stream.Status `json:"stream"`
	Stats     obs.Stats     `json:"stats"`
}

// HealthCheck reports service health, feed connection state, and counters.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.conn.Status()

	status := "ok"
	if !st.Connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Topics:    h.topics.Len(),
		Stream:    st,
		Stats:     h.stats.Snapshot(),
	})
}
