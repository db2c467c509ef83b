package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/biofeedback/internal/domain/biofeedback"
	apperrors "github.com/yanqian/biofeedback/pkg/errors"
)

func TestNewServiceInitialState(t *testing.T) {
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{}, &stubHistory{}, &stubAuthorizer{granted: false})

	state := svc.Current()
	require.Zero(t, state.BioFeedbackScore)
	require.Zero(t, state.ImprovementPercentage)
	require.True(t, state.IsLoading)
	require.True(t, state.HealthAuthorizationRequired)
	require.Equal(t, PhaseIdle, state.Phase)
}

func TestSubscribeReplaysCurrentState(t *testing.T) {
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{}, &stubHistory{}, &stubAuthorizer{granted: true})

	rec := &recorder{}
	unsubscribe := svc.Subscribe(rec.listen)
	defer unsubscribe()

	states := rec.snapshot()
	require.Len(t, states, 1)
	require.Equal(t, svc.Current(), states[0])
}

func TestLoadDataPublishesLoadingThenReady(t *testing.T) {
	history := &stubHistory{records: []biofeedback.HistoricalRecord{{Score: ptr(50), Timestamp: time.Now()}}, syncResult: true}
	svc := newServiceUnderTest(&stubHealth{score: 40}, &stubAnalytics{score: 80}, history, &stubAuthorizer{granted: true})

	rec := &recorder{}
	defer svc.Subscribe(rec.listen)()

	final, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 60.0, final.BioFeedbackScore, 1e-9)
	require.InDelta(t, 0.2, final.ImprovementPercentage, 1e-9)
	require.False(t, final.IsLoading)
	require.Equal(t, PhaseReady, final.Phase)
	require.False(t, final.UpdatedAt.IsZero())

	states := rec.snapshot()
	require.Len(t, states, 3)
	require.Equal(t, PhaseIdle, states[0].Phase)
	require.True(t, states[1].IsLoading)
	require.Equal(t, PhaseLoading, states[1].Phase)
	require.Equal(t, final, states[2])

	require.Equal(t, 2, history.fetchCount())
	calls := history.syncCalls()
	require.Len(t, calls, 1)
	require.InDelta(t, 60.0, calls[0].current, 1e-9)
	require.NotNil(t, calls[0].latest)
	require.Equal(t, 50.0, *calls[0].latest.Score)
}

func TestLoadDataEmptyHistorySyncsWithoutLatest(t *testing.T) {
	history := &stubHistory{}
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{score: 50}, history, &stubAuthorizer{granted: true})

	final, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 25.0, final.BioFeedbackScore, 1e-9)
	require.Zero(t, final.ImprovementPercentage)

	calls := history.syncCalls()
	require.Len(t, calls, 1)
	require.Nil(t, calls[0].latest)
}

func TestLoadDataFailureKeepsPriorValues(t *testing.T) {
	history := &stubHistory{records: []biofeedback.HistoricalRecord{{Score: ptr(50)}}}
	analytics := &stubAnalytics{score: 80}
	svc := newServiceUnderTest(&stubHealth{score: 40}, analytics, history, &stubAuthorizer{granted: true})

	first, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 60.0, first.BioFeedbackScore, 1e-9)

	analytics.setPanic(true)
	second, err := svc.LoadData(context.Background())
	require.ErrorContains(t, err, "panic")
	require.Equal(t, first.BioFeedbackScore, second.BioFeedbackScore)
	require.Equal(t, first.ImprovementPercentage, second.ImprovementPercentage)
	require.False(t, second.IsLoading)
	require.Equal(t, PhaseReady, second.Phase)
	require.Len(t, history.syncCalls(), 1)
}

func TestLoadDataFailureAppliesComputedScore(t *testing.T) {
	history := &stubHistory{panicOnFetch: true}
	svc := newServiceUnderTest(&stubHealth{score: 40}, &stubAnalytics{score: 80}, history, &stubAuthorizer{granted: true})

	final, err := svc.LoadData(context.Background())
	require.Error(t, err)
	require.InDelta(t, 60.0, final.BioFeedbackScore, 1e-9)
	require.Zero(t, final.ImprovementPercentage)
	require.False(t, final.IsLoading)
	require.Empty(t, history.syncCalls())
}

func TestLoadDataCancelledCycleKeepsPriorScore(t *testing.T) {
	history := &stubHistory{records: []biofeedback.HistoricalRecord{{Score: ptr(50)}}}
	svc := newServiceUnderTest(&stubHealth{score: 40}, &stubAnalytics{score: 80}, history, &stubAuthorizer{granted: true})

	first, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 60.0, first.BioFeedbackScore, 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second, err := svc.LoadData(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, first.BioFeedbackScore, second.BioFeedbackScore)
	require.Equal(t, first.ImprovementPercentage, second.ImprovementPercentage)
	require.False(t, second.IsLoading)
	require.Equal(t, PhaseReady, second.Phase)
	require.Len(t, history.syncCalls(), 1)
}

func TestLoadDataTimeoutKeepsPriorScore(t *testing.T) {
	health := &stubHealth{score: 40}
	history := &stubHistory{records: []biofeedback.HistoricalRecord{{Score: ptr(50)}}}
	svc := NewService(Config{AnalyticsRecords: 5, HistoryRecords: 2, LoadTimeout: 20 * time.Millisecond}, health, &stubAnalytics{score: 80}, history, &stubAuthorizer{granted: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := &recorder{}
	defer svc.Subscribe(rec.listen)()

	first, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 60.0, first.BioFeedbackScore, 1e-9)

	health.hang.Store(true)
	second, err := svc.LoadData(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, first.BioFeedbackScore, second.BioFeedbackScore)
	require.Equal(t, first.ImprovementPercentage, second.ImprovementPercentage)
	require.False(t, second.IsLoading)
	require.Equal(t, PhaseReady, second.Phase)
	require.Len(t, history.syncCalls(), 1)

	for _, s := range rec.snapshot() {
		if s.Phase == PhaseReady {
			require.InDelta(t, 60.0, s.BioFeedbackScore, 1e-9)
		}
	}
}

func TestLoadDataReportsUnreachableUpstream(t *testing.T) {
	history := &stubHistory{fetchErr: errors.New("dial tcp: connection refused")}
	analytics := &stubAnalytics{err: errors.New("dial tcp: connection refused")}
	svc := newServiceUnderTest(&stubHealth{score: 40}, analytics, history, &stubAuthorizer{granted: true})

	state, err := svc.LoadData(context.Background())
	require.True(t, apperrors.IsCode(err, apperrors.CodeUpstream))
	require.Equal(t, PhaseReady, state.Phase)
	require.InDelta(t, 20.0, state.BioFeedbackScore, 1e-9)
	require.Len(t, history.syncCalls(), 1)

	history = &stubHistory{fetchErr: errors.New("timeout")}
	svc = newServiceUnderTest(&stubHealth{score: 40}, &stubAnalytics{score: 80}, history, &stubAuthorizer{granted: true})
	state, err = svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 60.0, state.BioFeedbackScore, 1e-9)
}

func TestLoadDataSupersededCycleDoesNotPublish(t *testing.T) {
	health := &stubHealth{score: 40, blockFirst: true, entered: make(chan struct{})}
	history := &stubHistory{}
	svc := newServiceUnderTest(health, &stubAnalytics{score: 80}, history, &stubAuthorizer{granted: true})

	rec := &recorder{}
	defer svc.Subscribe(rec.listen)()

	done := make(chan State, 1)
	go func() {
		state, _ := svc.LoadData(context.Background())
		done <- state
	}()
	<-health.entered

	second, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 60.0, second.BioFeedbackScore, 1e-9)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("superseded cycle did not return")
	}

	ready := 0
	for _, s := range rec.snapshot() {
		if s.Phase == PhaseReady {
			ready++
		}
	}
	require.Equal(t, 1, ready)
	require.Len(t, history.syncCalls(), 1)
	require.Equal(t, second, svc.Current())
}

func TestUnsubscribeDoesNotAffectOthers(t *testing.T) {
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{}, &stubHistory{}, &stubAuthorizer{granted: true})

	first, second := &recorder{}, &recorder{}
	unsubscribeFirst := svc.Subscribe(first.listen)
	defer svc.Subscribe(second.listen)()

	unsubscribeFirst()
	unsubscribeFirst()
	_, err := svc.LoadData(context.Background())
	require.NoError(t, err)

	require.Len(t, first.snapshot(), 1)
	require.Len(t, second.snapshot(), 3)
}

func TestPanickingListenerDoesNotBreakPublication(t *testing.T) {
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{score: 20}, &stubHistory{}, &stubAuthorizer{granted: true})

	calls := 0
	defer svc.Subscribe(func(State) {
		calls++
		if calls > 1 {
			panic("listener exploded")
		}
	})()
	rec := &recorder{}
	defer svc.Subscribe(rec.listen)()

	final, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 10.0, final.BioFeedbackScore, 1e-9)
	require.Len(t, rec.snapshot(), 3)
}

func TestRequestHealthAuthorizationGranted(t *testing.T) {
	authorizer := &stubAuthorizer{grantOnRequest: true}
	svc := newServiceUnderTest(&stubHealth{score: 40}, &stubAnalytics{score: 80}, &stubHistory{}, authorizer)
	require.True(t, svc.Current().HealthAuthorizationRequired)

	state, err := svc.RequestHealthAuthorization(context.Background())
	require.NoError(t, err)
	require.False(t, state.HealthAuthorizationRequired)
	require.Equal(t, PhaseReady, state.Phase)
	require.InDelta(t, 60.0, state.BioFeedbackScore, 1e-9)
}

func TestRequestHealthAuthorizationDenied(t *testing.T) {
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{}, &stubHistory{}, &stubAuthorizer{})

	state, err := svc.RequestHealthAuthorization(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeHealthUnauthorized))
	require.True(t, state.HealthAuthorizationRequired)
	require.Equal(t, PhaseIdle, state.Phase)

	svc = newServiceUnderTest(&stubHealth{}, &stubAnalytics{}, &stubHistory{}, &stubAuthorizer{requestErr: errors.New("store unavailable")})
	_, err = svc.RequestHealthAuthorization(context.Background())
	require.True(t, apperrors.IsCode(err, apperrors.CodeHealthUnauthorized))
}

func TestCloseDetachesListeners(t *testing.T) {
	svc := newServiceUnderTest(&stubHealth{}, &stubAnalytics{}, &stubHistory{}, &stubAuthorizer{granted: true})

	rec := &recorder{}
	svc.Subscribe(rec.listen)
	svc.Close()
	_, err := svc.LoadData(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.snapshot(), 1)
	require.Equal(t, PhaseReady, svc.Current().Phase)
}

func TestNextTransitions(t *testing.T) {
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	start := State{BioFeedbackScore: 10, ImprovementPercentage: 0.5, Phase: PhaseReady}

	loading := next(start, event{kind: eventLoadStarted})
	require.True(t, loading.IsLoading)
	require.Equal(t, PhaseLoading, loading.Phase)
	require.Equal(t, 10.0, loading.BioFeedbackScore)

	failed := next(loading, event{kind: eventLoadFailed, score: 99, improvement: 9, hasScore: true, at: at})
	require.Equal(t, 99.0, failed.BioFeedbackScore)
	require.Equal(t, 0.5, failed.ImprovementPercentage)
	require.False(t, failed.IsLoading)
	require.Equal(t, at, failed.UpdatedAt)

	authorized := next(failed, event{kind: eventAuthorizationChanged, authRequired: true})
	require.True(t, authorized.HealthAuthorizationRequired)
	require.Equal(t, failed.BioFeedbackScore, authorized.BioFeedbackScore)
}

func newServiceUnderTest(health HealthScorer, analytics AnalyticsScorer, history ScoreHistory, authorizer Authorizer) Service {
	return NewService(Config{AnalyticsRecords: 5, HistoryRecords: 2, LoadTimeout: 5 * time.Second}, health, analytics, history, authorizer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ptr(v float64) *float64 {
	return &v
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) listen(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

type stubHealth struct {
	score      float64
	blockFirst bool
	hang       atomic.Bool
	entered    chan struct{}
	calls      atomic.Int32
}

// ComputeHealthScore behaves like the real aggregator once ctx is done: every
// query fails, so no signal is present and the score drops to zero.
func (s *stubHealth) ComputeHealthScore(ctx context.Context) biofeedback.HealthResult {
	if s.calls.Add(1) == 1 && s.blockFirst {
		close(s.entered)
		<-ctx.Done()
	}
	if s.hang.Load() {
		<-ctx.Done()
	}
	if ctx.Err() != nil {
		return biofeedback.HealthResult{}
	}
	return biofeedback.HealthResult{Score: s.score}
}

type stubAnalytics struct {
	mu      sync.Mutex
	score   float64
	err     error
	explode bool
}

func (s *stubAnalytics) setPanic(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explode = v
}

func (s *stubAnalytics) ComputeAnalyticsScore(context.Context, int) biofeedback.AnalyticsResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explode {
		panic("analytics decoder failure")
	}
	if s.err != nil {
		return biofeedback.AnalyticsResult{Err: s.err}
	}
	return biofeedback.AnalyticsResult{Score: s.score, Used: 1}
}

type syncCall struct {
	current float64
	latest  *biofeedback.HistoricalRecord
}

type stubHistory struct {
	mu           sync.Mutex
	records      []biofeedback.HistoricalRecord
	panicOnFetch bool
	fetchErr     error
	syncResult   bool
	fetched      int
	calls        []syncCall
}

func (s *stubHistory) FetchHistory(ctx context.Context, count int) ([]biofeedback.HistoricalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnFetch {
		panic("history decoder failure")
	}
	s.fetched = count
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records, nil
}

func (s *stubHistory) SyncIfNeeded(_ context.Context, current float64, latest *biofeedback.HistoricalRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, syncCall{current: current, latest: latest})
	return s.syncResult
}

func (s *stubHistory) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

func (s *stubHistory) syncCalls() []syncCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]syncCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type stubAuthorizer struct {
	granted        bool
	grantOnRequest bool
	requestErr     error
}

func (s *stubAuthorizer) IsAuthorizationGranted(context.Context) bool {
	return s.granted
}

func (s *stubAuthorizer) RequestAuthorization(context.Context) (bool, error) {
	if s.requestErr != nil {
		return false, s.requestErr
	}
	return s.grantOnRequest, nil
}
