package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/yanqian/biofeedback/pkg/errors"
)

const (
	defaultTokenTTL = 30 * 24 * time.Hour
	tokenTypeDevice = "device"
)

// DeviceIdentity supplies the subject of issued tokens.
type DeviceIdentity interface {
	DeviceID(ctx context.Context) (string, error)
}

// Service issues and validates device bearer tokens.
type Service interface {
	IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
}

type service struct {
	cfg    Config
	device DeviceIdentity
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg Config, device DeviceIdentity, logger *slog.Logger) Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &service{
		cfg:    cfg,
		device: device,
		logger: logger.With("component", "auth.service"),
		now:    time.Now,
	}
}

func (s *service) IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	key := strings.TrimSpace(req.EnrollmentKey)
	if key == "" {
		return TokenResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "enrollmentKey cannot be empty", nil)
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.EnrollmentKey)) != 1 {
		s.logger.Warn("rejected token request with bad enrollment key")
		return TokenResponse{}, apperrors.Wrap(apperrors.CodeInvalidToken, "invalid enrollment key", nil)
	}
	deviceID, err := s.device.DeviceID(ctx)
	if err != nil {
		return TokenResponse{}, apperrors.Wrap(apperrors.CodeAuth, "failed to resolve device id", err)
	}

	now := s.now()
	expires := now.Add(s.cfg.TokenTTL)
	claims := tokenClaims{
		TokenType: tokenTypeDevice,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return TokenResponse{}, apperrors.Wrap(apperrors.CodeAuth, "failed to sign token", err)
	}
	s.logger.Info("device token issued", "deviceId", deviceID, "expiresAt", expires)
	return TokenResponse{Token: signed, DeviceID: deviceID, ExpiresAt: expires}, nil
}

func (s *service) ValidateToken(_ context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "token missing", nil)
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "token invalid", nil)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "token missing expiry", nil)
	}
	if claims.TokenType != tokenTypeDevice || claims.Subject == "" {
		return Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "token type mismatch", nil)
	}
	return Claims{
		DeviceID:  claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}
