package healthkit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/biofeedback/internal/domain/health"
	"github.com/yanqian/biofeedback/internal/infra/prefstore"
	apperrors "github.com/yanqian/biofeedback/pkg/errors"
)

// AuthRequestedKey is the preference flag recording that read access was
// granted once.
const AuthRequestedKey = "healthKitAuthRequested"

// Source serves health data from a sample repository. Authorization is a
// persisted flag in the preference store.
type Source struct {
	repo   health.Repository
	prefs  prefstore.Store
	logger *slog.Logger
}

// NewSource constructs a Source.
func NewSource(repo health.Repository, prefs prefstore.Store, logger *slog.Logger) *Source {
	return &Source{
		repo:   repo,
		prefs:  prefs,
		logger: logger.With("component", "healthkit.source"),
	}
}

// IsAvailable reports whether the backing repository answers.
func (s *Source) IsAvailable(ctx context.Context) bool {
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("health repository unavailable", "error", err)
		return false
	}
	return true
}

// IsAuthorizationGranted reads the persisted flag; read failures count as
// not granted.
func (s *Source) IsAuthorizationGranted(ctx context.Context) bool {
	value, ok, err := s.prefs.Get(ctx, AuthRequestedKey)
	if err != nil {
		s.logger.Warn("reading health authorization flag failed", "error", err)
		return false
	}
	return ok && value == "true"
}

// RequestAuthorization grants access and persists the flag.
func (s *Source) RequestAuthorization(ctx context.Context) (bool, error) {
	if !s.IsAvailable(ctx) {
		return false, apperrors.Wrap(apperrors.CodeHealthUnavailable, "health data is not available", nil)
	}
	if err := s.prefs.Set(ctx, AuthRequestedKey, "true"); err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorage, "failed to persist health authorization", err)
	}
	s.logger.Info("health authorization granted")
	return true, nil
}

func (s *Source) QueryHRV(ctx context.Context, start, end time.Time) ([]health.Sample, error) {
	return s.repo.List(ctx, health.SignalHRV, start, end)
}

func (s *Source) QueryHeartRate(ctx context.Context, start, end time.Time) ([]health.Sample, error) {
	return s.repo.List(ctx, health.SignalHeartRate, start, end)
}

func (s *Source) QueryRespiratoryRate(ctx context.Context, start, end time.Time) ([]health.Sample, error) {
	return s.repo.List(ctx, health.SignalRespiratoryRate, start, end)
}

// QueryMindfulSessions returns sessions starting in [start, end].
func (s *Source) QueryMindfulSessions(ctx context.Context, start, end time.Time) ([]health.MindfulSession, error) {
	samples, err := s.repo.List(ctx, health.SignalMindfulness, start, end)
	if err != nil {
		return nil, err
	}
	sessions := make([]health.MindfulSession, 0, len(samples))
	for _, sample := range samples {
		sessions = append(sessions, health.MindfulSession{StartDate: sample.StartDate, EndDate: sample.EndDate})
	}
	return sessions, nil
}

// WriteMindfulSession stores a mindfulness interval.
func (s *Source) WriteMindfulSession(ctx context.Context, start, end time.Time) error {
	return s.repo.Insert(ctx, health.Sample{
		ID:        uuid.NewString(),
		Kind:      health.SignalMindfulness,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
	})
}

var _ health.Source = (*Source)(nil)
