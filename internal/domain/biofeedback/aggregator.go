package biofeedback

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/biofeedback/internal/domain/health"
	"github.com/yanqian/biofeedback/pkg/util"
)

const defaultLookback = 7 * 24 * time.Hour

// HealthAggregator turns the four device signals into a single health score.
type HealthAggregator struct {
	source   health.Source
	lookback time.Duration
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewHealthAggregator wires the aggregator to a health data source.
func NewHealthAggregator(cfg Config, source health.Source, logger *slog.Logger) *HealthAggregator {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &HealthAggregator{
		source:   source,
		lookback: lookback,
		location: loc,
		logger:   logger.With("component", "biofeedback.health"),
		now:      time.Now,
	}
}

// ComputeHealthScore queries every signal concurrently and combines the ones
// that returned data. It returns a zero score without querying when health
// access was never authorized.
func (a *HealthAggregator) ComputeHealthScore(ctx context.Context) HealthResult {
	if !a.source.IsAuthorizationGranted(ctx) {
		a.logger.Warn("health authorization not granted, health score is zero")
		return HealthResult{}
	}

	now := a.now().In(a.location)
	weekStart := now.Add(-a.lookback)
	dayStart := util.StartOfDay(now)

	fetchers := []func(context.Context) RawSignal{
		func(ctx context.Context) RawSignal {
			return a.averageSignal(ctx, health.SignalHRV, a.source.QueryHRV, weekStart, now)
		},
		func(ctx context.Context) RawSignal {
			return a.averageSignal(ctx, health.SignalHeartRate, a.source.QueryHeartRate, weekStart, now)
		},
		func(ctx context.Context) RawSignal {
			return a.mindfulMinutes(ctx, dayStart, now)
		},
		func(ctx context.Context) RawSignal {
			return a.averageSignal(ctx, health.SignalRespiratoryRate, a.source.QueryRespiratoryRate, weekStart, now)
		},
	}

	signals := make([]RawSignal, len(fetchers))
	var g errgroup.Group
	for i, fetch := range fetchers {
		g.Go(func() error {
			signals[i] = fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return HealthResult{Score: CombineSignals(signals), Signals: signals}
}

type sampleQuery func(ctx context.Context, start, end time.Time) ([]health.Sample, error)

func (a *HealthAggregator) averageSignal(ctx context.Context, kind health.SignalKind, query sampleQuery, start, end time.Time) RawSignal {
	samples, err := query(ctx, start, end)
	if err != nil {
		a.logger.Warn("health signal query failed", "kind", kind, "error", err)
		return RawSignal{Kind: kind}
	}
	if len(samples) == 0 {
		a.logger.Warn("health signal unavailable, no samples in window", "kind", kind)
		return RawSignal{Kind: kind}
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	avg := sum / float64(len(samples))
	a.logger.Debug("health signal averaged", "kind", kind, "samples", len(samples), "value", avg)
	return RawSignal{Kind: kind, Value: avg, Present: true}
}

func (a *HealthAggregator) mindfulMinutes(ctx context.Context, start, end time.Time) RawSignal {
	kind := health.SignalMindfulness
	sessions, err := a.source.QueryMindfulSessions(ctx, start, end)
	if err != nil {
		a.logger.Warn("health signal query failed", "kind", kind, "error", err)
		return RawSignal{Kind: kind}
	}
	if len(sessions) == 0 {
		a.logger.Warn("health signal unavailable, no samples in window", "kind", kind)
		return RawSignal{Kind: kind}
	}
	var total float64
	for _, s := range sessions {
		total += s.Minutes()
	}
	a.logger.Debug("mindful minutes summed", "sessions", len(sessions), "minutes", total)
	return RawSignal{Kind: kind, Value: total, Present: true}
}
