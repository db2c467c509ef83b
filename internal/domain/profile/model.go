package profile

import (
	"context"
	"time"

	"github.com/yanqian/biofeedback/internal/domain/biofeedback"
)

// Phase is the lifecycle position of the state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// State is the published profile snapshot. ImprovementPercentage is a signed
// ratio, not a percentage.
type State struct {
	BioFeedbackScore            float64   `json:"bioFeedbackScore"`
	ImprovementPercentage       float64   `json:"improvementPercentage"`
	IsLoading                   bool      `json:"isLoading"`
	HealthAuthorizationRequired bool      `json:"healthAuthorizationRequired"`
	Phase                       Phase     `json:"phase"`
	UpdatedAt                   time.Time `json:"updatedAt"`
}

// Listener receives every published state.
type Listener func(State)

// HealthScorer produces the device health score.
type HealthScorer interface {
	ComputeHealthScore(ctx context.Context) biofeedback.HealthResult
}

// AnalyticsScorer produces the voice-emotion score.
type AnalyticsScorer interface {
	ComputeAnalyticsScore(ctx context.Context, count int) biofeedback.AnalyticsResult
}

// ScoreHistory reads stored scores and pushes new ones.
type ScoreHistory interface {
	FetchHistory(ctx context.Context, count int) ([]biofeedback.HistoricalRecord, error)
	SyncIfNeeded(ctx context.Context, current float64, latest *biofeedback.HistoricalRecord) bool
}

// Authorizer grants access to device health data.
type Authorizer interface {
	IsAuthorizationGranted(ctx context.Context) bool
	RequestAuthorization(ctx context.Context) (bool, error)
}

// Config tunes the load cycle.
type Config struct {
	AnalyticsRecords int
	HistoryRecords   int
	LoadTimeout      time.Duration
}
