package framingham

// HighRiskThreshold is the probability at or above which a patient is offered priority booking,
// whichever model produced it.
const HighRiskThreshold = 0.20

// MaxProbability returns the largest probability among results, or 0 when there are none
func MaxProbability(results ...RiskResult) float64 {
	max := 0.0
	for _, r := range results {
		if r.Probability > max {
			max = r.Probability
		}
	}
	return max
}

// IsHighRisk applies the global threshold to the maximum probability across results
func IsHighRisk(results ...RiskResult) bool {
	if len(results) == 0 {
		return false
	}
	return MaxProbability(results...) >= HighRiskThreshold
}
