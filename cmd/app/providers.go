package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/biofeedback/internal/domain/auth"
	"github.com/yanqian/biofeedback/internal/domain/biofeedback"
	"github.com/yanqian/biofeedback/internal/domain/health"
	"github.com/yanqian/biofeedback/internal/domain/profile"
	"github.com/yanqian/biofeedback/internal/infra/config"
	"github.com/yanqian/biofeedback/internal/infra/device"
	"github.com/yanqian/biofeedback/internal/infra/healthrepo"
	"github.com/yanqian/biofeedback/internal/infra/prefstore"
	"github.com/yanqian/biofeedback/internal/infra/qwell"
	"github.com/yanqian/biofeedback/pkg/util"
)

func provideLocation(cfg *config.Config) (*time.Location, error) {
	return util.LoadLocation(cfg.Profile.Timezone)
}

func provideBiofeedbackConfig(cfg *config.Config, loc *time.Location) biofeedback.Config {
	return biofeedback.Config{
		Lookback: cfg.Health.Lookback,
		Location: loc,
	}
}

func provideProfileConfig(cfg *config.Config) profile.Config {
	return profile.Config{
		AnalyticsRecords: cfg.Profile.AnalyticsRecords,
		HistoryRecords:   cfg.Profile.HistoryRecords,
		LoadTimeout:      cfg.Profile.LoadTimeout,
	}
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:        cfg.Auth.Secret,
		EnrollmentKey: cfg.Auth.EnrollmentKey,
		TokenTTL:      cfg.Auth.TokenTTL,
	}
}

func provideDeviceIdentity(cfg *config.Config, store prefstore.Store, logger *slog.Logger) *device.Identity {
	return device.NewIdentity(cfg.Device.ID, store, logger)
}

func provideQwellClient(cfg *config.Config, loc *time.Location, identity *device.Identity) *qwell.Client {
	return qwell.NewClient(qwell.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Token:    cfg.API.Token,
		Location: loc,
	}, identity)
}

func provideHealthRepository(cfg *config.Config, logger *slog.Logger) (health.Repository, func()) {
	if repo, cleanup, ok := openPostgresRepository(cfg, logger); ok {
		return repo, cleanup
	}
	if path := strings.TrimSpace(cfg.Health.SQLitePath); path != "" {
		repo, err := healthrepo.OpenSQLite(path)
		if err != nil {
			logger.Error("failed to open sqlite health repository, using memory repository", "path", path, "error", err)
			return healthrepo.NewMemoryRepository(), func() {}
		}
		logger.Info("sqlite health repository enabled", "path", path)
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Error("closing sqlite health repository failed", "error", err)
			}
		}
	}
	logger.Info("no health storage configured, using memory repository")
	return healthrepo.NewMemoryRepository(), func() {}
}

func openPostgresRepository(cfg *config.Config, logger *slog.Logger) (health.Repository, func(), bool) {
	dsn := strings.TrimSpace(cfg.Health.Postgres.DSN)
	if dsn == "" {
		return nil, nil, false
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, skipping postgres health repository", "error", err)
		return nil, nil, false
	}
	if cfg.Health.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Health.Postgres.MaxConns
	}
	if cfg.Health.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Health.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, skipping postgres health repository", "error", err)
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, skipping postgres health repository", "error", err)
		pool.Close()
		return nil, nil, false
	}
	repo := healthrepo.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema setup failed, skipping postgres health repository", "error", err)
		pool.Close()
		return nil, nil, false
	}
	logger.Info("postgres health repository enabled")
	return repo, pool.Close, true
}

func providePrefStore(cfg *config.Config, logger *slog.Logger) (prefstore.Store, func()) {
	if cfg.Prefs.Redis.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return prefstore.NewMemoryStore(), func() {}
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return prefstore.NewMemoryStore(), func() {}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
			client.Close()
		} else {
			logger.Info("valkey preference store enabled", "addr", cfg.Prefs.Redis.Addr)
			return prefstore.NewValkeyStore(client, cfg.Prefs.Prefix), client.Close
		}
	}
	return prefstore.NewMemoryStore(), func() {}
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Prefs.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Prefs.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Prefs.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
