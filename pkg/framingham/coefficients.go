package framingham

// DiabetesIntercept is the intercept of the Framingham Offspring 8-year diabetes model
const DiabetesIntercept = -5.517

// indicator is a binary rule of the diabetes model
type indicator struct {
	name        string
	beta        float64
	description func(in DiabetesInput) string
	fires       func(in DiabetesInput) bool
}

func fixed(text string) func(DiabetesInput) string {
	return func(DiabetesInput) string { return text }
}

// Evaluation order is significant: fired indicators are reported in this order.
var diabetesIndicators = []indicator{
	{
		name:        "age50to64",
		beta:        -0.018,
		description: fixed("Age between 50 and 64 years"),
		fires:       func(in DiabetesInput) bool { return in.Age >= 50 && in.Age < 65 },
	},
	{
		name:        "age65plus",
		beta:        -0.081,
		description: fixed("Age 65 or older"),
		fires:       func(in DiabetesInput) bool { return in.Age >= 65 },
	},
	{
		name:        "male",
		beta:        -0.010,
		description: fixed("Biological sex is male"),
		fires:       func(in DiabetesInput) bool { return in.Sex == SexMale },
	},
	{
		name:        "parentalHistory",
		beta:        0.565,
		description: fixed("Parent had diabetes"),
		fires:       func(in DiabetesInput) bool { return in.ParentalHistory },
	},
	{
		name:        "bmi25to29",
		beta:        0.301,
		description: fixed("Overweight (BMI 25-29.9)"),
		fires:       func(in DiabetesInput) bool { return in.BMI >= 25 && in.BMI < 30 },
	},
	{
		name:        "bmi30plus",
		beta:        0.920,
		description: fixed("Obese (BMI 30 or higher)"),
		fires:       func(in DiabetesInput) bool { return in.BMI >= 30 },
	},
	{
		name:        "bpHighOrTherapy",
		beta:        0.498,
		description: fixed("BP >130 mmHg or on BP medication"),
		fires:       func(in DiabetesInput) bool { return in.SBP > 130 || in.OnBPTherapy },
	},
	{
		name: "lowHDL",
		beta: 0.944,
		description: func(in DiabetesInput) string {
			if in.Sex == SexMale {
				return "HDL <40 mg/dL (men)"
			}
			return "HDL <50 mg/dL (women)"
		},
		fires: func(in DiabetesInput) bool {
			return (in.Sex == SexMale && in.HDL < 40) || (in.Sex == SexFemale && in.HDL < 50)
		},
	},
	{
		name:        "tg150plus",
		beta:        0.575,
		description: fixed("Triglycerides >=150 mg/dL"),
		fires:       func(in DiabetesInput) bool { return in.TG >= 150 },
	},
	{
		name:        "fg100to126",
		beta:        1.980,
		description: fixed("Fasting glucose 100-126 mg/dL"),
		fires:       func(in DiabetesInput) bool { return in.FastingGlucose >= 100 && in.FastingGlucose <= 126 },
	},
}

// IndicatorCoefficient is the published coefficient of one diabetes indicator
type IndicatorCoefficient struct {
	Name string
	Beta float64
}

// DiabetesCoefficients returns a copy of the indicator table in evaluation order
func DiabetesCoefficients() []IndicatorCoefficient {
	out := make([]IndicatorCoefficient, len(diabetesIndicators))
	for i, ind := range diabetesIndicators {
		out[i] = IndicatorCoefficient{Name: ind.name, Beta: ind.beta}
	}
	return out
}

// CVDCoefficientSet holds the sex-specific constants of the General CVD model
type CVDCoefficientSet struct {
	S0             float64
	Mean           float64
	LnAge          float64
	LnTotalChol    float64
	LnHDL          float64
	LnSBPUntreated float64
	LnSBPTreated   float64
	Smoker         float64
	Diabetes       float64
}

var cvdCoefficients = map[Sex]CVDCoefficientSet{
	SexFemale: {
		S0:             0.95012,
		Mean:           26.1931,
		LnAge:          2.32888,
		LnTotalChol:    1.20904,
		LnHDL:          -0.70833,
		LnSBPUntreated: 2.76157,
		LnSBPTreated:   2.82263,
		Smoker:         0.52873,
		Diabetes:       0.69154,
	},
	SexMale: {
		S0:             0.88936,
		Mean:           23.9802,
		LnAge:          3.06117,
		LnTotalChol:    1.12370,
		LnHDL:          -0.93263,
		LnSBPUntreated: 1.93303,
		LnSBPTreated:   1.99881,
		Smoker:         0.65451,
		Diabetes:       0.57367,
	},
}

// CVDCoefficients returns the coefficient row for sex.
// The boolean is false when sex is not a supported value.
func CVDCoefficients(sex Sex) (CVDCoefficientSet, bool) {
	set, ok := cvdCoefficients[sex]
	return set, ok
}
