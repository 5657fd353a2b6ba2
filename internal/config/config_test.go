package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 1, cfg.Scraper.MaxDepth)
	require.Equal(t, 4, cfg.Scraper.Concurrency)
	require.Equal(t, 2, cfg.Scraper.RetryAttempts)
	require.Equal(t, "fs", cfg.Storage.Provider)
	require.Equal(t, "memory", cfg.Registry.Provider)
	require.False(t, cfg.Schedule.Enabled)
	require.Equal(t, "06:00", cfg.Schedule.Time)
	require.Equal(t, "UTC", cfg.Schedule.Timezone)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
scraper:
  target_url: https://example.com/docs
  max_depth: 3
  concurrency: 8
schedule:
  enabled: true
  time: "04:30"
  timezone: America/New_York
storage:
  provider: memory
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "https://example.com/docs", cfg.Scraper.TargetURL)
	require.Equal(t, 3, cfg.Scraper.MaxDepth)
	require.Equal(t, 8, cfg.Scraper.Concurrency)
	require.True(t, cfg.Schedule.Enabled)
	require.Equal(t, "04:30", cfg.Schedule.Time)
	require.Equal(t, "America/New_York", cfg.Schedule.Timezone)
	require.Equal(t, "memory", cfg.Storage.Provider)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SCRAPER_SERVER_PORT", "9999")
	t.Setenv("SCRAPER_SCRAPER_CONCURRENCY", "16")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 16, cfg.Scraper.Concurrency)
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "negative depth", mutate: func(c *Config) { c.Scraper.MaxDepth = -1 }, want: "scraper.max_depth"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Scraper.Concurrency = 0 }, want: "scraper.concurrency"},
		{name: "negative retries", mutate: func(c *Config) { c.Scraper.RetryAttempts = -1 }, want: "scraper.retry_attempts"},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "bad schedule time", mutate: func(c *Config) {
			c.Schedule.Enabled = true
			c.Schedule.Time = "6 AM"
			c.Scraper.TargetURL = "https://example.com"
		}, want: "schedule.time"},
		{name: "bad timezone", mutate: func(c *Config) {
			c.Schedule.Enabled = true
			c.Schedule.Timezone = "Mars/Olympus"
			c.Scraper.TargetURL = "https://example.com"
		}, want: "schedule.timezone"},
		{name: "schedule without target", mutate: func(c *Config) { c.Schedule.Enabled = true }, want: "scraper.target_url"},
		{name: "unknown storage provider", mutate: func(c *Config) { c.Storage.Provider = "s3" }, want: "storage.provider"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Provider = "gcs" }, want: "storage.gcs_bucket"},
		{name: "unknown registry provider", mutate: func(c *Config) { c.Registry.Provider = "mysql" }, want: "registry.provider"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Registry.Provider = "postgres" }, want: "db.dsn"},
		{name: "auth without key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "events" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
