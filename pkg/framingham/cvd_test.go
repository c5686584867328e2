package framingham

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCVD_ReferenceMale(t *testing.T) {
	in := CVDInput{
		Sex: SexMale, Age: 60, TotalChol: 220, HDL: 40, SBP: 150,
		Treated: true, Smoker: true, Diabetes: false,
	}

	result := ComputeCVD(in)

	require.Len(t, result.Details.Contributions, 5)
	names := []string{}
	for _, c := range result.Details.Contributions {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"lnAge", "lnTotalChol", "lnHDL", "lnSBPTreated", "smoker"}, names)

	sbp := result.Details.Contributions[3]
	assert.Equal(t, 1.99881, sbp.Beta)
	assert.InDelta(t, math.Log(150), sbp.Value, 1e-12)
	assert.InDelta(t, sbp.Beta*sbp.Value, sbp.Term, 1e-12)

	assert.InDelta(t, 25.82376230427583, result.Details.Score, 1e-9)
	assert.Equal(t, 0.88936, result.Details.BaselineSurvival)
	assert.Equal(t, 23.9802, result.Details.Mean)
	assert.InDelta(t, 0.5233266434313204, result.Probability, 1e-9)
	assert.InDelta(t,
		1-math.Pow(0.88936, math.Exp(result.Details.Score-23.9802)), result.Probability, 1e-15)
	assert.Equal(t, LabelHigh, result.Label)
	assert.Equal(t, ModelCVD, result.Model)
}

func TestComputeCVD_ReferenceFemaleUntreated(t *testing.T) {
	in := CVDInput{Sex: SexFemale, Age: 50, TotalChol: 200, HDL: 55, SBP: 120}

	result := ComputeCVD(in)

	require.Len(t, result.Details.Contributions, 4)
	assert.Equal(t, "lnSBPUntreated", result.Details.Contributions[3].Name)
	assert.Equal(t, 2.76157, result.Details.Contributions[3].Beta)
	assert.InDelta(t, 25.898989022751636, result.Details.Score, 1e-9)
	assert.InDelta(t, 0.037411549588160065, result.Probability, 1e-9)
	assert.Equal(t, LabelLow, result.Label)
}

func TestComputeCVD_BinaryTermsOrder(t *testing.T) {
	in := CVDInput{Sex: SexFemale, Age: 50, TotalChol: 200, HDL: 55, SBP: 120, Smoker: true, Diabetes: true}

	result := ComputeCVD(in)

	require.Len(t, result.Details.Contributions, 6)
	assert.Equal(t, "smoker", result.Details.Contributions[4].Name)
	assert.Equal(t, 0.52873, result.Details.Contributions[4].Term)
	assert.Equal(t, "diabetes", result.Details.Contributions[5].Name)
	assert.Equal(t, 0.69154, result.Details.Contributions[5].Term)
}

func TestComputeCVD_TreatedUsesTreatedBeta(t *testing.T) {
	in := CVDInput{Sex: SexMale, Age: 45, TotalChol: 180, HDL: 50, SBP: 130}
	untreated := ComputeCVD(in)
	in.Treated = true
	treated := ComputeCVD(in)

	assert.Equal(t, 1.93303, untreated.Details.Contributions[3].Beta)
	assert.Equal(t, 1.99881, treated.Details.Contributions[3].Beta)
	assert.Greater(t, treated.Probability, untreated.Probability)
}

func TestComputeCVD_Deterministic(t *testing.T) {
	in := CVDInput{Sex: SexMale, Age: 60, TotalChol: 220, HDL: 40, SBP: 150, Treated: true, Smoker: true}
	first := ComputeCVD(in)
	for i := 0; i < 100; i++ {
		require.Equal(t, first.Probability, ComputeCVD(in).Probability)
	}
}

func TestComputeCVD_ProbabilityBounds(t *testing.T) {
	bounds := make(map[string]Bound)
	for _, b := range CVDBounds() {
		bounds[b.Field] = b
	}
	rng := rand.New(rand.NewSource(42))
	sample := func(b Bound) float64 {
		switch rng.Intn(4) {
		case 0:
			return b.Min
		case 1:
			return b.Max
		}
		return b.Min + rng.Float64()*(b.Max-b.Min)
	}

	for i := 0; i < 20000; i++ {
		in := CVDInput{
			Sex:       []Sex{SexMale, SexFemale}[rng.Intn(2)],
			Age:       sample(bounds["age"]),
			TotalChol: sample(bounds["totalChol"]),
			HDL:       sample(bounds["hdl"]),
			SBP:       sample(bounds["sbp"]),
			Treated:   rng.Intn(2) == 1,
			Smoker:    rng.Intn(2) == 1,
			Diabetes:  rng.Intn(2) == 1,
		}
		p := ComputeCVD(in).Probability
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Fatalf("probability %v out of range for %+v", p, in)
		}
	}

	worst := ComputeCVD(CVDInput{
		Sex: SexMale, Age: 74, TotalChol: 405, HDL: 20, SBP: 200, Treated: true, Smoker: true, Diabetes: true,
	})
	assert.LessOrEqual(t, worst.Probability, 1.0)
	assert.Equal(t, LabelHigh, worst.Label)
}
