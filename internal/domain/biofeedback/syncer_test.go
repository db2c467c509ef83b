package biofeedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldSync(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	now := time.Date(2024, 7, 2, 9, 0, 0, 0, loc)
	today := now.Add(-2 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	require.True(t, ShouldSync(80, nil, now, loc))
	require.False(t, ShouldSync(80, &HistoricalRecord{Score: ptr(80), Timestamp: today}, now, loc))
	require.True(t, ShouldSync(80, &HistoricalRecord{Score: ptr(80), Timestamp: yesterday}, now, loc))
	require.True(t, ShouldSync(80, &HistoricalRecord{Score: ptr(79.5), Timestamp: today}, now, loc))
	require.True(t, ShouldSync(80, &HistoricalRecord{Timestamp: today}, now, loc))
	require.True(t, ShouldSync(80, &HistoricalRecord{Score: ptr(80)}, now, loc))
}

func TestShouldSyncUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	now := time.Date(2024, 7, 2, 1, 0, 0, 0, loc)
	// 23:30 UTC on Jul 1 is 07:30 on Jul 2 in loc.
	stored := time.Date(2024, 7, 1, 23, 30, 0, 0, time.UTC)

	require.False(t, ShouldSync(50, &HistoricalRecord{Score: ptr(50), Timestamp: stored}, now, loc))
	require.True(t, ShouldSync(50, &HistoricalRecord{Score: ptr(50), Timestamp: stored}, now, time.UTC))
}

func TestSyncerSyncIfNeeded(t *testing.T) {
	store := &stubScoreStore{}
	syncer := newSyncerUnderTest(store, time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC))

	require.True(t, syncer.SyncIfNeeded(context.Background(), 61.5, nil))
	require.Equal(t, []float64{61.5}, store.updates)

	latest := &HistoricalRecord{Score: ptr(61.5), Timestamp: time.Date(2024, 7, 2, 7, 0, 0, 0, time.UTC)}
	require.False(t, syncer.SyncIfNeeded(context.Background(), 61.5, latest))
	require.Len(t, store.updates, 1)
}

func TestSyncerSwallowsUpdateFailure(t *testing.T) {
	store := &stubScoreStore{updateErr: errors.New("502 bad gateway")}
	syncer := newSyncerUnderTest(store, time.Now())

	require.False(t, syncer.SyncIfNeeded(context.Background(), 40, nil))
	require.Equal(t, []float64{40}, store.updates)
}

func TestSyncerFetchHistory(t *testing.T) {
	records := []HistoricalRecord{{Score: ptr(50)}, {Score: ptr(45)}}
	store := &stubScoreStore{history: records}
	syncer := newSyncerUnderTest(store, time.Now())

	got, err := syncer.FetchHistory(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, records, got)
	require.Equal(t, 2, store.lastCount)

	store.fetchErr = errors.New("timeout")
	got, err = syncer.FetchHistory(context.Background(), 2)
	require.ErrorIs(t, err, store.fetchErr)
	require.Empty(t, got)
}

func newSyncerUnderTest(store ScoreStore, now time.Time) *Syncer {
	syncer := NewSyncer(Config{Location: time.UTC}, store, newTestLogger())
	syncer.now = func() time.Time { return now }
	return syncer
}

type stubScoreStore struct {
	history   []HistoricalRecord
	fetchErr  error
	updateErr error
	lastCount int
	updates   []float64
}

func (s *stubScoreStore) FetchScores(_ context.Context, count int) ([]HistoricalRecord, error) {
	s.lastCount = count
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.history, nil
}

func (s *stubScoreStore) UpdateScore(_ context.Context, score float64) (UpdateResult, error) {
	s.updates = append(s.updates, score)
	if s.updateErr != nil {
		return UpdateResult{}, s.updateErr
	}
	return UpdateResult{ID: 1, Score: &score}, nil
}
