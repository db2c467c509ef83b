package biofeedback

// ComputeImprovement returns the signed change of current relative to a
// baseline chosen from history (most recent first). With two records, a most
// recent score equal to current is treated as the just-written copy of
// current and the older record becomes the baseline. Histories longer than
// two records yield 0.
func ComputeImprovement(current float64, history []HistoricalRecord) float64 {
	switch len(history) {
	case 1:
		if history[0].Score == nil {
			return 0
		}
		return ratio(*history[0].Score, current)
	case 2:
		last, secondLast := history[0], history[1]
		if last.Score != nil && *last.Score == current && secondLast.Score != nil {
			return ratio(*secondLast.Score, current)
		}
		if last.Score != nil {
			return ratio(*last.Score, current)
		}
		return 0
	default:
		return 0
	}
}

func ratio(prev, current float64) float64 {
	if prev == 0 {
		return 0
	}
	return (current - prev) / prev
}
