package biofeedback

import (
	"context"
	"log/slog"
)

// EmotionScoreCeiling is the largest raw emotion-affect value observed from
// the detection service; scores are expressed as a fraction of it.
// TODO: replace with a server-provided ceiling once the detection API exposes one.
const EmotionScoreCeiling = 0.74

// AnalyticsClient fetches recent emotion-detection records for this device.
type AnalyticsClient interface {
	FetchAnalytics(ctx context.Context, count int) ([]AnalyticsRecord, error)
}

// AnalyticsScorer converts recent voice-emotion records into a percentage.
type AnalyticsScorer struct {
	client AnalyticsClient
	logger *slog.Logger
}

// NewAnalyticsScorer wires the scorer to the remote analytics API.
func NewAnalyticsScorer(client AnalyticsClient, logger *slog.Logger) *AnalyticsScorer {
	return &AnalyticsScorer{
		client: client,
		logger: logger.With("component", "biofeedback.analytics"),
	}
}

// ComputeAnalyticsScore fetches count records and scores them. A failed fetch
// scores as if no records were returned.
func (s *AnalyticsScorer) ComputeAnalyticsScore(ctx context.Context, count int) AnalyticsResult {
	records, err := s.client.FetchAnalytics(ctx, count)
	if err != nil {
		s.logger.Warn("fetching analytics failed", "error", err)
		return AnalyticsResult{Err: err}
	}
	score, used := ScoreEmotions(records)
	s.logger.Debug("analytics scored", "records", len(records), "used", used, "score", score)
	return AnalyticsResult{Score: score, Used: used}
}

// ScoreEmotions averages the present emotion scores relative to
// EmotionScoreCeiling and scales to a percentage. Records without a score are
// skipped.
func ScoreEmotions(records []AnalyticsRecord) (float64, int) {
	var (
		sum  float64
		used int
	)
	for _, r := range records {
		if r.EmotionScore == nil {
			continue
		}
		sum += *r.EmotionScore / EmotionScoreCeiling
		used++
	}
	if used == 0 {
		return 0, 0
	}
	return sum / float64(used) * 100, used
}
