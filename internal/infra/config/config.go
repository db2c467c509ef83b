package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	API     APIConfig     `yaml:"api"`
	Device  DeviceConfig  `yaml:"device"`
	Profile ProfileConfig `yaml:"profile"`
	Health  HealthConfig  `yaml:"health"`
	Prefs   PrefsConfig   `yaml:"prefs"`
	Auth    AuthConfig    `yaml:"auth"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// APIConfig points at the remote analytics and biofeedback score API.
type APIConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"`
}

// DeviceConfig pins the device identity used as the correlation key.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// ProfileConfig tunes the profile load cycle.
type ProfileConfig struct {
	AnalyticsRecords int           `yaml:"analyticsRecords"`
	HistoryRecords   int           `yaml:"historyRecords"`
	LoadTimeout      time.Duration `yaml:"loadTimeout"`
	RefreshInterval  time.Duration `yaml:"refreshInterval"`
	Timezone         string        `yaml:"timezone"`
	LoadOnStart      bool          `yaml:"loadOnStart"`
}

// HealthConfig selects where health samples are stored.
type HealthConfig struct {
	Lookback   time.Duration  `yaml:"lookback"`
	SQLitePath string         `yaml:"sqlitePath"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// PrefsConfig controls where small persisted flags live.
type PrefsConfig struct {
	Prefix string      `yaml:"prefix"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig contains connection information for the preference store.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AuthConfig controls bearer token protection of the HTTP API.
type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Secret        string        `yaml:"secret"`
	EnrollmentKey string        `yaml:"enrollmentKey"`
	TokenTTL      time.Duration `yaml:"tokenTtl"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("QWELL_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("QWELL_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("QWELL_API_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = parsed
		}
	}
	if v := os.Getenv("DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("PROFILE_ANALYTICS_RECORDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Profile.AnalyticsRecords = parsed
		}
	}
	if v := os.Getenv("PROFILE_LOAD_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Profile.LoadTimeout = parsed
		}
	}
	if v := os.Getenv("PROFILE_REFRESH_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Profile.RefreshInterval = parsed
		}
	}
	if v := os.Getenv("PROFILE_TIMEZONE"); v != "" {
		cfg.Profile.Timezone = v
	}
	if v := os.Getenv("HEALTH_SQLITE_PATH"); v != "" {
		cfg.Health.SQLitePath = v
	}
	if v := os.Getenv("HEALTH_POSTGRES_DSN"); v != "" {
		cfg.Health.Postgres.DSN = v
	}
	if v := os.Getenv("PREFS_REDIS_ENABLED"); v != "" {
		cfg.Prefs.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("PREFS_REDIS_ADDR"); v != "" {
		cfg.Prefs.Redis.Addr = v
	}
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = parseBool(v)
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("AUTH_ENROLLMENT_KEY"); v != "" {
		cfg.Auth.EnrollmentKey = v
	}
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 45 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/health/authorization",
					"/api/v1/health/samples",
					"/api/v1/health/mindful-sessions",
				},
			},
		},
		API: APIConfig{
			BaseURL: "https://devapi.qwell.app/api/",
			Timeout: 10 * time.Second,
		},
		Profile: ProfileConfig{
			AnalyticsRecords: 5,
			HistoryRecords:   2,
			LoadTimeout:      30 * time.Second,
			Timezone:         "Local",
			LoadOnStart:      true,
		},
		Health: HealthConfig{
			Lookback: 7 * 24 * time.Hour,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Prefs: PrefsConfig{
			Prefix: "biofeedback",
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.baseUrl cannot be empty")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.Profile.AnalyticsRecords <= 0 {
		return errors.New("profile.analyticsRecords must be positive")
	}
	if c.Profile.HistoryRecords < 1 || c.Profile.HistoryRecords > 2 {
		return errors.New("profile.historyRecords must be 1 or 2")
	}
	if c.Profile.LoadTimeout <= 0 {
		return errors.New("profile.loadTimeout must be positive")
	}
	if c.Profile.RefreshInterval < 0 {
		return errors.New("profile.refreshInterval cannot be negative")
	}
	if c.Health.Lookback <= 0 {
		return errors.New("health.lookback must be positive")
	}
	if c.Prefs.Redis.Enabled && strings.TrimSpace(c.Prefs.Redis.Addr) == "" {
		return errors.New("prefs.redis.addr cannot be empty when redis is enabled")
	}
	if c.Auth.Enabled {
		if strings.TrimSpace(c.Auth.Secret) == "" {
			return errors.New("auth.secret cannot be empty when auth is enabled")
		}
		if strings.TrimSpace(c.Auth.EnrollmentKey) == "" {
			return errors.New("auth.enrollmentKey cannot be empty when auth is enabled")
		}
		if c.Auth.TokenTTL <= 0 {
			return errors.New("auth.tokenTtl must be positive")
		}
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}
