package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/biofeedback/internal/domain/auth"
	"github.com/yanqian/biofeedback/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
	)

	router.GET("/healthz", handler.Healthz)

	limiter := rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger)
	api := router.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.POST("/auth/token", limiter, handler.IssueToken)
	}

	protected := api.Group("")
	if cfg.Auth.Enabled {
		protected.Use(authMiddleware(authSvc))
	}
	protected.Use(limiter)
	{
		protected.GET("/profile", handler.GetProfile)
		protected.POST("/profile/refresh", handler.RefreshProfile)
		protected.GET("/profile/stream", handler.StreamProfile)
		protected.GET("/health/authorization", handler.GetHealthAuthorization)
		protected.POST("/health/authorization", handler.RequestHealthAuthorization)
		protected.POST("/health/samples", handler.IngestSamples)
		protected.POST("/health/mindful-sessions", handler.RecordMindfulSession)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		attrs := []any{"method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds()}
		if claims, ok := getClaims(c); ok {
			attrs = append(attrs, "deviceId", claims.DeviceID)
		}
		logger.Info("http request", attrs...)
	}
}
