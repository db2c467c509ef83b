package biofeedback

import (
	"math"

	"github.com/yanqian/biofeedback/internal/domain/health"
)

// SignalWeight is the equal share each of the four signal kinds carries.
const SignalWeight = 0.25

const (
	hrvCeiling         = 100.0
	heartRateCeiling   = 100.0
	mindfulMinutesGoal = 500.0
	respiratoryCeiling = 18.0
)

// Normalize maps a raw reading into [0,1]. Unknown kinds get zero weight so
// they never affect a score.
func Normalize(kind health.SignalKind, raw float64) Contribution {
	var v float64
	switch kind {
	case health.SignalHRV:
		v = raw / hrvCeiling
	case health.SignalHeartRate:
		v = (heartRateCeiling - raw) / heartRateCeiling
	case health.SignalMindfulness:
		v = raw / mindfulMinutesGoal
	case health.SignalRespiratoryRate:
		v = (respiratoryCeiling - raw) / respiratoryCeiling
	default:
		return Contribution{Kind: kind}
	}
	return Contribution{Kind: kind, Normalized: clamp01(v), Weight: SignalWeight}
}

// CombineSignals returns the weighted mean of present signals scaled to
// [0,100], or 0 when none are present.
func CombineSignals(signals []RawSignal) float64 {
	var weighted, total float64
	for _, s := range signals {
		if !s.Present {
			continue
		}
		c := Normalize(s.Kind, s.Value)
		weighted += c.Normalized * c.Weight
		total += c.Weight
	}
	if total <= 0 {
		return 0
	}
	return weighted / total * 100
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
