package biofeedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/yanqian/biofeedback/pkg/util"
)

// ScoreStore is the remote biofeedback score history.
type ScoreStore interface {
	FetchScores(ctx context.Context, count int) ([]HistoricalRecord, error)
	UpdateScore(ctx context.Context, score float64) (UpdateResult, error)
}

// ShouldSync reports whether current must be pushed: always when nothing is
// stored yet, otherwise when the score changed or the latest record is not
// from today in loc.
func ShouldSync(current float64, latest *HistoricalRecord, now time.Time, loc *time.Location) bool {
	if latest == nil {
		return true
	}
	if latest.Score == nil || *latest.Score != current {
		return true
	}
	if latest.Timestamp.IsZero() {
		return true
	}
	return !util.SameDay(latest.Timestamp, now, loc)
}

// Syncer reads score history and pushes new scores to the remote store.
type Syncer struct {
	store    ScoreStore
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewSyncer wires the syncer to the remote score store.
func NewSyncer(cfg Config, store ScoreStore, logger *slog.Logger) *Syncer {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Syncer{
		store:    store,
		location: loc,
		logger:   logger.With("component", "biofeedback.sync"),
		now:      time.Now,
	}
}

// FetchHistory returns up to count stored scores, most recent first. On
// failure the history is empty and the error is returned for reporting only.
func (s *Syncer) FetchHistory(ctx context.Context, count int) ([]HistoricalRecord, error) {
	records, err := s.store.FetchScores(ctx, count)
	if err != nil {
		s.logger.Warn("fetching biofeedback history failed", "error", err)
		return nil, err
	}
	s.logger.Debug("biofeedback history fetched", "records", len(records))
	return records, nil
}

// SyncIfNeeded pushes current when ShouldSync says so and reports whether a
// write succeeded. Write failures are logged and swallowed.
func (s *Syncer) SyncIfNeeded(ctx context.Context, current float64, latest *HistoricalRecord) bool {
	if !ShouldSync(current, latest, s.now(), s.location) {
		s.logger.Debug("biofeedback score unchanged today, skipping sync", "score", current)
		return false
	}
	res, err := s.store.UpdateScore(ctx, current)
	if err != nil {
		s.logger.Error("updating biofeedback score failed", "score", current, "error", err)
		return false
	}
	s.logger.Info("biofeedback score synced", "score", current, "id", res.ID, "date", res.Date)
	return true
}
