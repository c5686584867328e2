// Package framingham implements the Framingham Offspring diabetes and Framingham General CVD risk
// models, together with the payload reconciliation and validation that feed them.
//
// Every function in this package is pure: no logging, no I/O and no shared mutable state, so any
// number of goroutines may call it concurrently.
package framingham

// Sex is the biological sex used to select sex-specific rules and coefficients
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Valid reports whether s is one of the supported values
func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// Model identifies a risk model
type Model string

const (
	ModelDiabetes Model = "framingham_dm_2007"
	ModelCVD      Model = "framingham_cvd_2008"
)

// Label is a risk category derived from the risk percentage
type Label string

const (
	LabelLow          Label = "low"
	LabelBorderline   Label = "borderline"
	LabelIntermediate Label = "intermediate"
	LabelHigh         Label = "high"
)

// DiabetesInput is the canonical, validated input of the diabetes model.
// Obtain it from ValidateDiabetes; ComputeDiabetes assumes every field is in range.
type DiabetesInput struct {
	Sex             Sex     `json:"sex"`
	Age             float64 `json:"age"`
	BMI             float64 `json:"bmi"`
	SBP             float64 `json:"sbp"`
	OnBPTherapy     bool    `json:"onBpTherapy"`
	HDL             float64 `json:"hdl"`
	TG              float64 `json:"tg"`
	FastingGlucose  float64 `json:"fastingGlucose"`
	ParentalHistory bool    `json:"parentalHistory"`
}

// CVDInput is the canonical, validated input of the cardiovascular model.
// Obtain it from ValidateCVD; ComputeCVD assumes every field is in range.
type CVDInput struct {
	Sex       Sex     `json:"sex"`
	Age       float64 `json:"age"`
	TotalChol float64 `json:"totalChol"`
	HDL       float64 `json:"hdl"`
	SBP       float64 `json:"sbp"`
	Treated   bool    `json:"treated"`
	Smoker    bool    `json:"smoker"`
	Diabetes  bool    `json:"diabetes"`
}

// Contribution is one term of a risk score.
// For a diabetes indicator Value is 1 and Term equals Beta.
type Contribution struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Beta        float64 `json:"beta"`
	Term        float64 `json:"term"`
}

// Details breaks a RiskResult down into the terms that produced it
type Details struct {
	FiredIndicators  []Contribution `json:"firedIndicators,omitempty"`
	Contributions    []Contribution `json:"contributions,omitempty"`
	Intercept        float64        `json:"intercept,omitempty"`
	BaselineSurvival float64        `json:"S0,omitempty"`
	Mean             float64        `json:"MEAN,omitempty"`
	Score            float64        `json:"score"`
	RiskPercentage   float64        `json:"riskPercentage"`
}

// RiskResult is the output of a model: a probability in [0,1], its label and the breakdown
type RiskResult struct {
	Model          Model   `json:"model"`
	Probability    float64 `json:"probability"`
	RiskPercentage float64 `json:"riskPercentage"`
	Label          Label   `json:"label"`
	Details        Details `json:"details"`
}

// Violation is a field-level validation failure
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}
