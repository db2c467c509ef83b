package health

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/biofeedback/pkg/errors"
)

const maxIngestBatch = 1000

// Service exposes health-data operations that sit outside the score cycle.
type Service interface {
	Status(ctx context.Context) AuthorizationStatus
	Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error)
	RecordMindfulSession(ctx context.Context, req MindfulSessionRequest) (MindfulSessionResponse, error)
}

type service struct {
	source Source
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the health domain.
func NewService(source Source, repo Repository, logger *slog.Logger) Service {
	return &service{
		source: source,
		repo:   repo,
		logger: logger.With("component", "health.service"),
		now:    time.Now,
	}
}

func (s *service) Status(ctx context.Context) AuthorizationStatus {
	return AuthorizationStatus{
		Available: s.source.IsAvailable(ctx),
		Granted:   s.source.IsAuthorizationGranted(ctx),
	}
}

func (s *service) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	if len(req.Samples) == 0 {
		return IngestResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "samples cannot be empty", nil)
	}
	if len(req.Samples) > maxIngestBatch {
		return IngestResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("at most %d samples per request", maxIngestBatch), nil)
	}

	samples := make([]Sample, 0, len(req.Samples))
	for i, in := range req.Samples {
		sample, err := toSample(in)
		if err != nil {
			return IngestResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("sample %d", i), err)
		}
		samples = append(samples, sample)
	}

	if err := s.repo.Insert(ctx, samples...); err != nil {
		return IngestResponse{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store samples", err)
	}
	s.logger.Info("health samples ingested", "count", len(samples))
	return IngestResponse{Stored: len(samples)}, nil
}

func (s *service) RecordMindfulSession(ctx context.Context, req MindfulSessionRequest) (MindfulSessionResponse, error) {
	if req.DurationSeconds <= 0 || math.IsNaN(req.DurationSeconds) || math.IsInf(req.DurationSeconds, 0) {
		return MindfulSessionResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "durationSeconds must be positive", nil)
	}
	if !s.source.IsAuthorizationGranted(ctx) {
		s.logger.Warn("health authorization not granted, mindful session not saved")
		return MindfulSessionResponse{Recorded: false}, nil
	}

	end := s.now()
	start := end.Add(-time.Duration(req.DurationSeconds * float64(time.Second)))
	if err := s.source.WriteMindfulSession(ctx, start, end); err != nil {
		s.logger.Error("saving mindful session failed", "error", err)
		return MindfulSessionResponse{}, apperrors.Wrap(apperrors.CodeStorage, "failed to save mindful session", err)
	}
	s.logger.Info("mindful session saved", "minutes", end.Sub(start).Minutes())
	return MindfulSessionResponse{Recorded: true, StartDate: start, EndDate: end}, nil
}

func toSample(in SampleInput) (Sample, error) {
	kind, ok := ParseSignalKind(in.Kind)
	if !ok {
		return Sample{}, fmt.Errorf("unknown kind %q", in.Kind)
	}
	if in.StartDate.IsZero() {
		return Sample{}, fmt.Errorf("startDate is required")
	}
	end := in.EndDate
	if end.IsZero() {
		end = in.StartDate
	}
	if end.Before(in.StartDate) {
		return Sample{}, fmt.Errorf("endDate precedes startDate")
	}
	value := in.Value
	if kind == SignalMindfulness {
		if !end.After(in.StartDate) {
			return Sample{}, fmt.Errorf("mindful session needs a positive duration")
		}
		value = 0
	} else if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return Sample{}, fmt.Errorf("value must be a non-negative number")
	}
	return Sample{
		ID:        uuid.NewString(),
		Kind:      kind,
		Value:     value,
		StartDate: in.StartDate.UTC(),
		EndDate:   end.UTC(),
	}, nil
}
