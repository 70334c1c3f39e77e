package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPINION_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPINION_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "OPINION_FEED_WS_URL")
	setStr(&cfg.Feed.ApiKey, "OPINION_FEED_API_KEY")
	setDuration(&cfg.Feed.HeartbeatInterval, "OPINION_FEED_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Feed.LivenessTimeout, "OPINION_FEED_LIVENESS_TIMEOUT")
	setDuration(&cfg.Feed.BackoffMin, "OPINION_FEED_BACKOFF_MIN")
	setDuration(&cfg.Feed.BackoffMax, "OPINION_FEED_BACKOFF_MAX")

	// ── Snapshot ──
	setStr(&cfg.Snapshot.BaseURL, "OPINION_SNAPSHOT_BASE_URL")
	setStr(&cfg.Snapshot.ApiKey, "OPINION_SNAPSHOT_API_KEY")
	setInt(&cfg.Snapshot.PageSize, "OPINION_SNAPSHOT_PAGE_SIZE")
	setInt(&cfg.Snapshot.MaxMarkets, "OPINION_SNAPSHOT_MAX_MARKETS")

	// ── Search ──
	setInt(&cfg.Search.MaxDistance, "OPINION_SEARCH_MAX_DISTANCE")

	// ── Query ──
	setInt(&cfg.Query.DefaultLimit, "OPINION_QUERY_DEFAULT_LIMIT")
	setInt(&cfg.Query.MaxLimit, "OPINION_QUERY_MAX_LIMIT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OPINION_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OPINION_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPINION_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "OPINION_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
