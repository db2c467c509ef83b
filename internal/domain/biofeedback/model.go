package biofeedback

import (
	"time"

	"github.com/yanqian/biofeedback/internal/domain/health"
)

// RawSignal is one physiological reading; Present is false when the source
// returned no samples or the query failed.
type RawSignal struct {
	Kind    health.SignalKind `json:"kind"`
	Value   float64           `json:"value"`
	Present bool              `json:"present"`
}

// Contribution is a normalized signal and its fixed weight.
type Contribution struct {
	Kind       health.SignalKind `json:"kind"`
	Normalized float64           `json:"normalized"`
	Weight     float64           `json:"weight"`
}

// HealthResult is the aggregator output for one cycle.
type HealthResult struct {
	Score   float64     `json:"score"`
	Signals []RawSignal `json:"signals"`
}

// PresentSignals counts signals that contributed to Score.
func (r HealthResult) PresentSignals() int {
	n := 0
	for _, s := range r.Signals {
		if s.Present {
			n++
		}
	}
	return n
}

// AnalyticsRecord is one emotion-detection record. EmotionScore is nil when
// the server omitted it.
type AnalyticsRecord struct {
	EmotionScore *float64
}

// AnalyticsResult is the fetcher output for one cycle. Err is set when the
// fetch failed and Score fell back to zero.
type AnalyticsResult struct {
	Score float64 `json:"score"`
	Used  int     `json:"used"`
	Err   error   `json:"-"`
}

// HistoricalRecord is a stored biofeedback score. Score is nil when the
// server omitted it; Timestamp is zero when missing or unparseable.
type HistoricalRecord struct {
	Score     *float64
	Timestamp time.Time
}

// UpdateResult echoes what the remote store accepted.
type UpdateResult struct {
	ID       int64
	Date     string
	DeviceID string
	Score    *float64
	Message  string
}

// Config wires runtime knobs for the score components.
type Config struct {
	Lookback time.Duration
	Location *time.Location
}
