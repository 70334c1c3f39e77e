// Package obs is the observability boundary for the sync engine. Core
// components never log directly; they emit structured events through a
// Collector and the slog-backed implementation here decides how to surface
// them.
package obs

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Collector receives structured events from the stream connection and the
// message dispatcher. Implementations must be safe for concurrent use and
// must never block the caller.
type Collector interface {
	// StateChange reports a connection state transition.
	StateChange(session string, from, to string)

	// ReconnectAttempt reports one reconnect cycle and the backoff delay
	// that preceded it.
	ReconnectAttempt(session string, attempt int, delay time.Duration)

	// TransportFailure reports a dropped connection or liveness timeout.
	TransportFailure(session string, err error)

	// ParseFailure reports a frame dropped by the dispatcher.
	ParseFailure(err error)

	// UnknownEntity reports a valid frame for a market the snapshot never
	// loaded.
	UnknownEntity(marketID int64)

	// DepthDiff reports a consumed depth diff; depth never mutates topic
	// state, so counting is all that happens to it.
	DepthDiff(marketID int64)
}

// Stats is a point-in-time copy of the Metrics counters.
type Stats struct {
	ParseFailures   int64 `json:"parse_failures"`
	UnknownEntities int64 `json:"unknown_entities"`
	DepthDiffs      int64 `json:"depth_diffs"`
	Reconnects      int64 `json:"reconnects"`
}

// Metrics is the production Collector: every event is logged through slog and
// counted atomically so the health endpoint can report totals.
type Metrics struct {
	logger *slog.Logger

	parseFailures   atomic.Int64
	unknownEntities atomic.Int64
	depthDiffs      atomic.Int64
	reconnects      atomic.Int64
}

// NewMetrics creates a Metrics collector logging through logger.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{logger: logger.With(slog.String("component", "stream"))}
}

func (m *Metrics) StateChange(session, from, to string) {
	m.logger.Info("connection state change",
		slog.String("session", session),
		slog.String("from", from),
		slog.String("to", to),
	)
}

func (m *Metrics) ReconnectAttempt(session string, attempt int, delay time.Duration) {
	m.reconnects.Add(1)
	m.logger.Warn("reconnect attempt",
		slog.String("session", session),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)
}

func (m *Metrics) TransportFailure(session string, err error) {
	m.logger.Warn("transport failure",
		slog.String("session", session),
		slog.String("error", err.Error()),
	)
}

func (m *Metrics) ParseFailure(err error) {
	m.parseFailures.Add(1)
	m.logger.Warn("dropped frame", slog.String("error", err.Error()))
}

func (m *Metrics) UnknownEntity(marketID int64) {
	m.unknownEntities.Add(1)
	m.logger.Debug("frame for unknown market", slog.Int64("market_id", marketID))
}

func (m *Metrics) DepthDiff(marketID int64) {
	m.depthDiffs.Add(1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		ParseFailures:   m.parseFailures.Load(),
		UnknownEntities: m.unknownEntities.Load(),
		DepthDiffs:      m.depthDiffs.Load(),
		Reconnects:      m.reconnects.Load(),
	}
}

// Nop discards every event. Useful as a default and in tests that do not
// assert on observability output.
type Nop struct{}

func (Nop) StateChange(string, string, string)            {}
func (Nop) ReconnectAttempt(string, int, time.Duration)   {}
func (Nop) TransportFailure(string, error)                {}
func (Nop) ParseFailure(error)                            {}
func (Nop) UnknownEntity(int64)                           {}
func (Nop) DepthDiff(int64)                               {}
