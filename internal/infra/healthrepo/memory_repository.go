package healthrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/biofeedback/internal/domain/health"
)

// MemoryRepository keeps samples in process memory for tests/dev.
type MemoryRepository struct {
	mu      sync.RWMutex
	samples map[health.SignalKind][]health.Sample
	ids     map[string]struct{}
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		samples: make(map[health.SignalKind][]health.Sample),
		ids:     make(map[string]struct{}),
	}
}

// Ping implements health.Repository.
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

// Insert stores samples; an ID already present is ignored.
func (r *MemoryRepository) Insert(_ context.Context, samples ...health.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		if _, exists := r.ids[s.ID]; exists {
			continue
		}
		r.ids[s.ID] = struct{}{}
		r.samples[s.Kind] = append(r.samples[s.Kind], s)
	}
	return nil
}

// List implements health.Repository.
func (r *MemoryRepository) List(_ context.Context, kind health.SignalKind, start, end time.Time) ([]health.Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]health.Sample, 0)
	for _, s := range r.samples[kind] {
		if s.StartDate.Before(start) || s.StartDate.After(end) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

var _ health.Repository = (*MemoryRepository)(nil)
