package metrics

import "time"

// CycleStats captures what a single profile load cycle consumed and produced.
type CycleStats struct {
	SignalsPresent   int           `json:"signalsPresent"`
	AnalyticsScores  int           `json:"analyticsScores"`
	HistoryRecords   int           `json:"historyRecords"`
	UpstreamFailures int           `json:"upstreamFailures"`
	Synced           bool          `json:"synced"`
	Duration         time.Duration `json:"duration"`
}

// IsZero reports whether no data was gathered.
func (s CycleStats) IsZero() bool {
	return s.SignalsPresent == 0 && s.AnalyticsScores == 0 && s.HistoryRecords == 0 && !s.Synced
}

// LogAttrs flattens the stats into slog key/value pairs.
func (s CycleStats) LogAttrs() []any {
	return []any{
		"signals_present", s.SignalsPresent,
		"analytics_scores", s.AnalyticsScores,
		"history_records", s.HistoryRecords,
		"upstream_failures", s.UpstreamFailures,
		"synced", s.Synced,
		"duration_ms", s.Duration.Milliseconds(),
	}
}
