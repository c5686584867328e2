package framingham

import "math"

// ComputeCVD scores the Framingham General CVD 10-year model (2008, lipid based).
// in must have passed ValidateCVD.
func ComputeCVD(in CVDInput) RiskResult {
	coef := cvdCoefficients[in.Sex]

	sbpName, sbpBeta := "lnSBPUntreated", coef.LnSBPUntreated
	if in.Treated {
		sbpName, sbpBeta = "lnSBPTreated", coef.LnSBPTreated
	}

	terms := []Contribution{
		logTerm("lnAge", "ln(Age)", in.Age, coef.LnAge),
		logTerm("lnTotalChol", "ln(Total Cholesterol)", in.TotalChol, coef.LnTotalChol),
		logTerm("lnHDL", "ln(HDL)", in.HDL, coef.LnHDL),
		logTerm(sbpName, sbpDescription(in.Treated), in.SBP, sbpBeta),
	}
	if in.Smoker {
		terms = append(terms, binaryTerm("smoker", "Current Smoker", coef.Smoker))
	}
	if in.Diabetes {
		terms = append(terms, binaryTerm("diabetes", "Diabetes", coef.Diabetes))
	}

	score := 0.0
	for _, t := range terms {
		score += t.Term
	}

	// risk = 1 - S0 ^ exp(score - MEAN)
	probability := clamp01(1 - math.Pow(coef.S0, math.Exp(score-coef.Mean)))
	pct := probability * 100

	return RiskResult{
		Model:          ModelCVD,
		Probability:    probability,
		RiskPercentage: pct,
		Label:          ClassifyCVDRisk(pct),
		Details: Details{
			Contributions:    terms,
			BaselineSurvival: coef.S0,
			Mean:             coef.Mean,
			Score:            score,
			RiskPercentage:   pct,
		},
	}
}

func logTerm(name, description string, x, beta float64) Contribution {
	ln := math.Log(x)
	return Contribution{Name: name, Description: description, Value: ln, Beta: beta, Term: beta * ln}
}

func binaryTerm(name, description string, beta float64) Contribution {
	return Contribution{Name: name, Description: description, Value: 1, Beta: beta, Term: beta}
}

func sbpDescription(treated bool) string {
	if treated {
		return "ln(SBP Treated)"
	}
	return "ln(SBP Untreated)"
}
