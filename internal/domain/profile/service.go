package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/biofeedback/internal/domain/biofeedback"
	apperrors "github.com/yanqian/biofeedback/pkg/errors"
	"github.com/yanqian/biofeedback/pkg/metrics"
)

const (
	defaultAnalyticsRecords = 5
	defaultHistoryRecords   = 2
	defaultLoadTimeout      = 30 * time.Second
	authCheckTimeout        = 5 * time.Second

	// upstreamReads is the number of biofeedback API reads per cycle.
	upstreamReads = 2

	// anyGeneration marks events that are not tied to a load cycle.
	anyGeneration uint64 = 0
)

// Service owns the profile state and its load cycle. A load cycle always
// leaves the loading phase; LoadData's error only reports what went wrong.
type Service interface {
	LoadData(ctx context.Context) (State, error)
	Subscribe(listener Listener) (unsubscribe func())
	Current() State
	RequestHealthAuthorization(ctx context.Context) (State, error)
	Close()
}

type subscription struct {
	id uint64
	fn Listener
}

type service struct {
	cfg        Config
	health     HealthScorer
	analytics  AnalyticsScorer
	history    ScoreHistory
	authorizer Authorizer
	logger     *slog.Logger
	now        func() time.Time

	// publishMu serializes transitions with their notifications so listeners
	// observe states in order. It is never taken while mu is held.
	publishMu sync.Mutex

	mu          sync.Mutex
	state       State
	listeners   []subscription
	nextID      uint64
	generation  uint64
	cancelCycle context.CancelFunc
}

// NewService constructs the state machine in the idle phase and reads the
// persisted health authorization flag.
func NewService(cfg Config, health HealthScorer, analytics AnalyticsScorer, history ScoreHistory, authorizer Authorizer, logger *slog.Logger) Service {
	if cfg.AnalyticsRecords <= 0 {
		cfg.AnalyticsRecords = defaultAnalyticsRecords
	}
	if cfg.HistoryRecords <= 0 {
		cfg.HistoryRecords = defaultHistoryRecords
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	s := &service{
		cfg:        cfg,
		health:     health,
		analytics:  analytics,
		history:    history,
		authorizer: authorizer,
		logger:     logger.With("component", "profile.service"),
		now:        time.Now,
		state:      State{IsLoading: true, Phase: PhaseIdle},
	}

	ctx, cancel := context.WithTimeout(context.Background(), authCheckTimeout)
	defer cancel()
	if !authorizer.IsAuthorizationGranted(ctx) {
		s.logger.Info("health authorization has not been requested yet")
		s.state.HealthAuthorizationRequired = true
	}
	return s
}

func (s *service) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers listener and immediately replays the current state to
// it before any later change is delivered. Listeners run synchronously and
// must not call Subscribe or LoadData.
func (s *service) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: listener})
	current := s.state
	s.mu.Unlock()

	s.notify(listener, current)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *service) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.listeners {
		if sub.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// LoadData runs one load cycle. A call made while another cycle is in
// flight cancels the older cycle; only the newest cycle publishes. The
// returned error is non-nil when the cycle failed, was abandoned, or could
// not reach the biofeedback API at all (CodeUpstream).
func (s *service) LoadData(ctx context.Context) (State, error) {
	cycleCtx, cancel, gen := s.beginCycle(ctx)
	defer cancel()
	defer s.endCycle(gen)

	started := s.now()
	if _, ok := s.apply(gen, event{kind: eventLoadStarted}); !ok {
		return s.Current(), nil
	}

	res := s.runCycle(cycleCtx)
	res.stats.Duration = s.now().Sub(started)

	ev := event{
		kind:           eventLoadSucceeded,
		score:          res.score,
		improvement:    res.improvement,
		hasScore:       res.hasScore,
		hasImprovement: res.hasImprovement,
		at:             s.now(),
	}
	switch {
	case res.err == nil:
	case errors.Is(res.err, context.Canceled), errors.Is(res.err, context.DeadlineExceeded):
		ev.kind = eventLoadFailed
		s.logger.Warn("profile load cycle abandoned, keeping prior values", "error", res.err)
	default:
		ev.kind = eventLoadFailed
		s.logger.Error("profile load cycle failed", "error", res.err)
	}

	state, ok := s.apply(gen, ev)
	if !ok {
		s.logger.Info("profile load cycle superseded, result discarded", "generation", gen)
		return state, nil
	}
	if res.stats.IsZero() {
		s.logger.Warn("profile load cycle gathered no data")
	}
	s.logger.Info("profile load cycle finished", append([]any{"score", state.BioFeedbackScore, "improvement", state.ImprovementPercentage}, res.stats.LogAttrs()...)...)
	if res.err != nil {
		return state, res.err
	}
	if res.stats.UpstreamFailures >= upstreamReads {
		return state, apperrors.Wrap(apperrors.CodeUpstream, "biofeedback api unreachable", res.upstreamErr)
	}
	return state, nil
}

func (s *service) RequestHealthAuthorization(ctx context.Context) (State, error) {
	granted, err := s.authorizer.RequestAuthorization(ctx)
	if err != nil {
		s.logger.Error("requesting health authorization failed", "error", err)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return s.Current(), err
		}
		return s.Current(), apperrors.Wrap(apperrors.CodeHealthUnauthorized, "health authorization failed", err)
	}
	if !granted {
		return s.Current(), apperrors.Wrap(apperrors.CodeHealthUnauthorized, "health authorization was not granted", nil)
	}
	s.apply(anyGeneration, event{kind: eventAuthorizationChanged, authRequired: false})
	state, err := s.LoadData(ctx)
	if err != nil {
		s.logger.Warn("profile reload after health authorization failed", "error", err)
	}
	return state, nil
}

// Close cancels any in-flight cycle and detaches every listener.
func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelCycle != nil {
		s.cancelCycle()
		s.cancelCycle = nil
	}
	s.generation++
	s.listeners = nil
}

type cycleResult struct {
	score          float64
	improvement    float64
	hasScore       bool
	hasImprovement bool
	stats          metrics.CycleStats
	upstreamErr    error
	err            error
}

func (s *service) runCycle(ctx context.Context) (res cycleResult) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("load cycle panic: %v", r)
		}
	}()

	var (
		healthRes    biofeedback.HealthResult
		analyticsRes biofeedback.AnalyticsResult
		g            errgroup.Group
	)
	g.Go(guard(func() { healthRes = s.health.ComputeHealthScore(ctx) }))
	g.Go(guard(func() { analyticsRes = s.analytics.ComputeAnalyticsScore(ctx, s.cfg.AnalyticsRecords) }))
	if err := g.Wait(); err != nil {
		res.err = err
		return res
	}

	if err := ctx.Err(); err != nil {
		res.err = fmt.Errorf("load cycle abandoned: %w", err)
		return res
	}

	res.score = biofeedback.Blend(healthRes.Score, analyticsRes.Score)
	res.hasScore = true
	res.stats.SignalsPresent = healthRes.PresentSignals()
	res.stats.AnalyticsScores = analyticsRes.Used
	if analyticsRes.Err != nil {
		res.stats.UpstreamFailures++
		res.upstreamErr = analyticsRes.Err
	}

	history, err := s.history.FetchHistory(ctx, s.cfg.HistoryRecords)
	if err != nil {
		res.stats.UpstreamFailures++
		if res.upstreamErr == nil {
			res.upstreamErr = err
		}
	}
	if err := ctx.Err(); err != nil {
		res.hasScore = false
		res.err = fmt.Errorf("load cycle abandoned: %w", err)
		return res
	}
	res.stats.HistoryRecords = len(history)
	res.improvement = biofeedback.ComputeImprovement(res.score, history)
	res.hasImprovement = true

	var latest *biofeedback.HistoricalRecord
	if len(history) > 0 {
		latest = &history[0]
	}
	res.stats.Synced = s.history.SyncIfNeeded(ctx, res.score, latest)
	return res
}

func guard(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("score computation panic: %v", r)
			}
		}()
		fn()
		return nil
	}
}

func (s *service) beginCycle(parent context.Context) (context.Context, context.CancelFunc, uint64) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.LoadTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelCycle != nil {
		s.cancelCycle()
	}
	s.generation++
	s.cancelCycle = cancel
	return ctx, cancel, s.generation
}

func (s *service) endCycle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.cancelCycle = nil
	}
}

// apply feeds ev through next and publishes the result. Events from a
// superseded cycle are dropped and ok is false.
func (s *service) apply(gen uint64, ev event) (State, bool) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if gen != anyGeneration && gen != s.generation {
		current := s.state
		s.mu.Unlock()
		return current, false
	}
	s.state = next(s.state, ev)
	current := s.state
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, sub := range listeners {
		s.notify(sub.fn, current)
	}
	return current, true
}

func (s *service) notify(listener Listener, state State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("profile listener panicked", "panic", r)
		}
	}()
	listener(state)
}
