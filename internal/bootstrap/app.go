package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/biofeedback/internal/domain/profile"
	"github.com/yanqian/biofeedback/internal/infra/config"
)

// App encapsulates the HTTP server and profile refresh lifecycle.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	profile profile.Service
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, profileSvc profile.Service) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, profile: profileSvc}
}

// Run starts the HTTP server, performs the initial profile load and any
// periodic refresh, and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go a.refreshLoop(refreshCtx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		stopRefresh()
		a.profile.Close()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		a.profile.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) refreshLoop(ctx context.Context) {
	if a.cfg.Profile.LoadOnStart {
		a.load(ctx)
	}
	interval := a.cfg.Profile.RefreshInterval
	if interval <= 0 {
		return
	}
	a.logger.Info("periodic profile refresh enabled", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.load(ctx)
		}
	}
}

func (a *App) load(ctx context.Context) {
	if _, err := a.profile.LoadData(ctx); err != nil && ctx.Err() == nil {
		a.logger.Warn("profile refresh failed", "error", err)
	}
}
