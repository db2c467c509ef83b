package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "http:\n  address: \":9090\"\n"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, "https://devapi.qwell.app/api/", cfg.API.BaseURL)
	require.Equal(t, 5, cfg.Profile.AnalyticsRecords)
	require.Equal(t, 2, cfg.Profile.HistoryRecords)
	require.Equal(t, 7*24*time.Hour, cfg.Health.Lookback)
	require.True(t, cfg.Profile.LoadOnStart)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "profile:\n  timezone: UTC\n"))
	t.Setenv("QWELL_API_BASE_URL", "http://localhost:9000/api/")
	t.Setenv("DEVICE_ID", "device-123")
	t.Setenv("PROFILE_ANALYTICS_RECORDS", "8")
	t.Setenv("PROFILE_REFRESH_INTERVAL", "15m")
	t.Setenv("PREFS_REDIS_ENABLED", "true")
	t.Setenv("PREFS_REDIS_ADDR", "localhost:6379")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000/api/", cfg.API.BaseURL)
	require.Equal(t, "device-123", cfg.Device.ID)
	require.Equal(t, 8, cfg.Profile.AnalyticsRecords)
	require.Equal(t, 15*time.Minute, cfg.Profile.RefreshInterval)
	require.Equal(t, "UTC", cfg.Profile.Timezone)
	require.True(t, cfg.Prefs.Redis.Enabled)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty address":       func(c *Config) { c.HTTP.Address = "" },
		"empty base url":      func(c *Config) { c.API.BaseURL = " " },
		"zero analytics":      func(c *Config) { c.Profile.AnalyticsRecords = 0 },
		"too much history":    func(c *Config) { c.Profile.HistoryRecords = 3 },
		"negative refresh":    func(c *Config) { c.Profile.RefreshInterval = -time.Second },
		"redis without addr":  func(c *Config) { c.Prefs.Redis.Enabled = true },
		"auth without secret": func(c *Config) { c.Auth.Enabled = true },
		"auth without key": func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.Secret = "s"
		},
		"rate limit zero rpm":  func(c *Config) { c.HTTP.RateLimit.RequestsPerMinute = 0 },
		"retry zero attempts":  func(c *Config) { c.HTTP.Retry.MaxAttempts = 0 },
		"zero health lookback": func(c *Config) { c.Health.Lookback = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, defaultConfig().Validate())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
