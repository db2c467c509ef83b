package biofeedback

// Blend averages the health and analytics scores with equal weight.
func Blend(healthScore, analyticsScore float64) float64 {
	return (healthScore + analyticsScore) / 2
}
