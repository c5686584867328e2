package framingham

import "math"

// ComputeDiabetes scores the Framingham Offspring 8-year type 2 diabetes model.
// in must have passed ValidateDiabetes.
func ComputeDiabetes(in DiabetesInput) RiskResult {
	z := DiabetesIntercept
	fired := []Contribution{}
	for _, ind := range diabetesIndicators {
		if !ind.fires(in) {
			continue
		}
		z += ind.beta
		fired = append(fired, Contribution{
			Name:        ind.name,
			Description: ind.description(in),
			Value:       1,
			Beta:        ind.beta,
			Term:        ind.beta,
		})
	}

	probability := clamp01(1 / (1 + math.Exp(-z)))
	pct := probability * 100

	return RiskResult{
		Model:          ModelDiabetes,
		Probability:    probability,
		RiskPercentage: pct,
		Label:          ClassifyDiabetesRisk(pct),
		Details: Details{
			FiredIndicators: fired,
			Intercept:       DiabetesIntercept,
			Score:           z,
			RiskPercentage:  pct,
		},
	}
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
