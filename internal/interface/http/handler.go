package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/biofeedback/internal/domain/auth"
	"github.com/yanqian/biofeedback/internal/domain/health"
	"github.com/yanqian/biofeedback/internal/domain/profile"
)

const (
	streamBuffer    = 4
	streamKeepAlive = 15 * time.Second
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	profileSvc profile.Service
	healthSvc  health.Service
	authSvc    auth.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(profileSvc profile.Service, healthSvc health.Service, authSvc auth.Service, logger *slog.Logger) *Handler {
	return &Handler{
		profileSvc: profileSvc,
		healthSvc:  healthSvc,
		authSvc:    authSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetProfile returns the latest published profile state.
func (h *Handler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, h.profileSvc.Current())
}

// RefreshProfile runs a load cycle and returns the resulting state. An
// unreachable biofeedback API answers 502 so the request can be replayed.
func (h *Handler) RefreshProfile(c *gin.Context) {
	state, err := h.profileSvc.LoadData(c.Request.Context())
	if err != nil {
		abortWithError(c, toHTTPError(err, "profile_refresh_failed"))
		return
	}
	c.JSON(http.StatusOK, state)
}

// StreamProfile pushes every published state as a Server-Sent Event. The
// current state is sent first. Slow readers only see the latest state.
func (h *Handler) StreamProfile(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("clearing stream write deadline failed", "error", err)
	}

	updates := make(chan profile.State, streamBuffer)
	unsubscribe := h.profileSvc.Subscribe(func(s profile.State) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := c.Writer.Write([]byte(": keep-alive\n\n")); err != nil {
				h.logger.Debug("profile stream closed by client", "error", err)
				return
			}
			flusher.Flush()
		case state := <-updates:
			payload, err := json.Marshal(state)
			if err != nil {
				h.logger.Error("marshal profile state failed", "error", err)
				continue
			}
			frame := make([]byte, 0, len(payload)+24)
			frame = append(frame, "event: profile\ndata: "...)
			frame = append(frame, payload...)
			frame = append(frame, "\n\n"...)
			if _, err := c.Writer.Write(frame); err != nil {
				h.logger.Debug("profile stream closed by client", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// GetHealthAuthorization reports availability and grant status.
func (h *Handler) GetHealthAuthorization(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthSvc.Status(c.Request.Context()))
}

// RequestHealthAuthorization grants health access and reloads the profile.
func (h *Handler) RequestHealthAuthorization(c *gin.Context) {
	state, err := h.profileSvc.RequestHealthAuthorization(c.Request.Context())
	if err != nil {
		abortWithError(c, toHTTPError(err, "authorization_failed"))
		return
	}
	c.JSON(http.StatusOK, state)
}

// IngestSamples stores readings pushed by the device.
func (h *Handler) IngestSamples(c *gin.Context) {
	var req health.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.healthSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, toHTTPError(err, "ingest_failed"))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RecordMindfulSession writes a mindful session ending now.
func (h *Handler) RecordMindfulSession(c *gin.Context) {
	var req health.MindfulSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.healthSvc.RecordMindfulSession(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, toHTTPError(err, "mindful_session_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// IssueToken exchanges the enrollment key for a device token.
func (h *Handler) IssueToken(c *gin.Context) {
	var req auth.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.IssueToken(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, toHTTPError(err, "token_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
