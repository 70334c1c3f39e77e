package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeTOML(t, `
log_level = "debug"

[feed]
ws_url = "wss://feed.example.com"
heartbeat_interval = "10s"
liveness_timeout = "25s"

[query]
default_limit = 20
max_limit = 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "wss://feed.example.com", cfg.Feed.WsURL)
	require.Equal(t, 10*time.Second, cfg.Feed.HeartbeatInterval.Duration)
	require.Equal(t, 25*time.Second, cfg.Feed.LivenessTimeout.Duration)
	require.Equal(t, 20, cfg.Query.DefaultLimit)

	// Sections the file does not mention keep their defaults.
	require.Equal(t, 200, cfg.Snapshot.PageSize)
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTOML(t, `
[feed]
api_key = "from-file"
`)

	t.Setenv("OPINION_FEED_API_KEY", "from-env")
	t.Setenv("OPINION_SERVER_PORT", "9001")
	t.Setenv("OPINION_FEED_BACKOFF_MIN", "2s")
	t.Setenv("OPINION_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.Feed.ApiKey)
	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, 2*time.Second, cfg.Feed.BackoffMin.Duration)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"http feed url", func(c *Config) { c.Feed.WsURL = "https://feed.example.com" }},
		{"liveness below heartbeat", func(c *Config) {
			c.Feed.HeartbeatInterval = duration{30 * time.Second}
			c.Feed.LivenessTimeout = duration{10 * time.Second}
		}},
		{"backoff max below min", func(c *Config) {
			c.Feed.BackoffMin = duration{time.Minute}
			c.Feed.BackoffMax = duration{time.Second}
		}},
		{"zero page size", func(c *Config) { c.Snapshot.PageSize = 0 }},
		{"max limit below default", func(c *Config) {
			c.Query.DefaultLimit = 100
			c.Query.MaxLimit = 50
		}},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
