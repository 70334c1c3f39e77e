// Package config defines the top-level configuration for the opinion.trade
// sync engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OPINION_* environment variables.
type Config struct {
	Feed     FeedConfig     `toml:"feed"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Search   SearchConfig   `toml:"search"`
	Query    QueryConfig    `toml:"query"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// FeedConfig holds the WebSocket feed endpoint and connection tunables.
type FeedConfig struct {
	WsURL             string   `toml:"ws_url"`
	ApiKey            string   `toml:"api_key"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	LivenessTimeout   duration `toml:"liveness_timeout"`
	BackoffMin        duration `toml:"backoff_min"`
	BackoffMax        duration `toml:"backoff_max"`
}

// SnapshotConfig holds the REST API used to seed the store at startup.
type SnapshotConfig struct {
	BaseURL    string `toml:"base_url"`
	ApiKey     string `toml:"api_key"`
	PageSize   int    `toml:"page_size"`
	MaxMarkets int    `toml:"max_markets"`
}

// SearchConfig holds search index tunables.
type SearchConfig struct {
	// MaxDistance is the largest edit distance a fuzzy match may have.
	MaxDistance int `toml:"max_distance"`
}

// QueryConfig holds pagination bounds for the query engine.
type QueryConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			WsURL:             "wss://ws.opinion.trade",
			HeartbeatInterval: duration{30 * time.Second},
			LivenessTimeout:   duration{90 * time.Second},
			BackoffMin:        duration{5 * time.Second},
			BackoffMax:        duration{60 * time.Second},
		},
		Snapshot: SnapshotConfig{
			BaseURL:    "https://api.opinion.trade",
			PageSize:   200,
			MaxMarkets: 500,
		},
		Search: SearchConfig{
			MaxDistance: 2,
		},
		Query: QueryConfig{
			DefaultLimit: 50,
			MaxLimit:     200,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.WsURL == "" {
		errs = append(errs, "feed: ws_url must not be empty")
	} else if !strings.HasPrefix(c.Feed.WsURL, "ws://") && !strings.HasPrefix(c.Feed.WsURL, "wss://") {
		errs = append(errs, fmt.Sprintf("feed: ws_url must be a ws:// or wss:// URL, got %q", c.Feed.WsURL))
	}
	if c.Feed.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "feed: heartbeat_interval must be positive")
	}
	if c.Feed.LivenessTimeout.Duration > 0 && c.Feed.LivenessTimeout.Duration <= c.Feed.HeartbeatInterval.Duration {
		errs = append(errs, "feed: liveness_timeout must exceed heartbeat_interval")
	}
	if c.Feed.BackoffMin.Duration <= 0 {
		errs = append(errs, "feed: backoff_min must be positive")
	}
	if c.Feed.BackoffMax.Duration < c.Feed.BackoffMin.Duration {
		errs = append(errs, "feed: backoff_max must not be below backoff_min")
	}

	// Snapshot
	if c.Snapshot.BaseURL == "" {
		errs = append(errs, "snapshot: base_url must not be empty")
	}
	if c.Snapshot.PageSize < 1 {
		errs = append(errs, "snapshot: page_size must be >= 1")
	}
	if c.Snapshot.MaxMarkets < 1 {
		errs = append(errs, "snapshot: max_markets must be >= 1")
	}

	// Search
	if c.Search.MaxDistance < 0 {
		errs = append(errs, "search: max_distance must be >= 0")
	}

	// Query
	if c.Query.DefaultLimit < 1 {
		errs = append(errs, "query: default_limit must be >= 1")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		errs = append(errs, "query: max_limit must not be below default_limit")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
