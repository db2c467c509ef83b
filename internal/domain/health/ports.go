package health

import (
	"context"
	"time"
)

// Source is the platform health-data collaborator. Query methods return an
// empty slice when no samples exist in the window.
type Source interface {
	IsAvailable(ctx context.Context) bool
	IsAuthorizationGranted(ctx context.Context) bool
	RequestAuthorization(ctx context.Context) (bool, error)
	QueryHRV(ctx context.Context, start, end time.Time) ([]Sample, error)
	QueryHeartRate(ctx context.Context, start, end time.Time) ([]Sample, error)
	QueryMindfulSessions(ctx context.Context, start, end time.Time) ([]MindfulSession, error)
	QueryRespiratoryRate(ctx context.Context, start, end time.Time) ([]Sample, error)
	WriteMindfulSession(ctx context.Context, start, end time.Time) error
}

// Repository persists raw samples backing a Source.
type Repository interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, samples ...Sample) error
	// List returns samples of kind whose start date lies in [start, end], oldest first.
	List(ctx context.Context, kind SignalKind, start, end time.Time) ([]Sample, error)
}
