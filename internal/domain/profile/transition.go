package profile

import "time"

type eventKind int

const (
	eventLoadStarted eventKind = iota
	eventLoadSucceeded
	eventLoadFailed
	eventAuthorizationChanged
)

// event is the only way state changes. Score and improvement are applied on
// success; on failure only the fields flagged as computed are applied.
type event struct {
	kind           eventKind
	score          float64
	improvement    float64
	hasScore       bool
	hasImprovement bool
	authRequired   bool
	at             time.Time
}

// next is the single authoritative transition function.
func next(s State, ev event) State {
	switch ev.kind {
	case eventLoadStarted:
		s.IsLoading = true
		s.Phase = PhaseLoading
	case eventLoadSucceeded:
		s.BioFeedbackScore = ev.score
		s.ImprovementPercentage = ev.improvement
		s.IsLoading = false
		s.Phase = PhaseReady
		s.UpdatedAt = ev.at
	case eventLoadFailed:
		if ev.hasScore {
			s.BioFeedbackScore = ev.score
		}
		if ev.hasImprovement {
			s.ImprovementPercentage = ev.improvement
		}
		s.IsLoading = false
		s.Phase = PhaseReady
		s.UpdatedAt = ev.at
	case eventAuthorizationChanged:
		s.HealthAuthorizationRequired = ev.authRequired
	}
	return s
}
