package framingham

// OutcomeKind tags the variant carried by an Outcome
type OutcomeKind string

const (
	OutcomeScored        OutcomeKind = "scored"
	OutcomeInvalidInput  OutcomeKind = "invalid_input"
	OutcomeMissingFields OutcomeKind = "missing_fields"
)

// missingReasons explains fields that clients most often omit
var missingReasons = map[Model]map[string]string{
	ModelCVD: {
		"hdl": "HDL cholesterol is required for accurate cardiovascular risk calculation",
	},
}

// MissingField names a required field that could not be resolved
type MissingField struct {
	Field  string `json:"field"`
	Reason string `json:"reason,omitempty"`
}

// Outcome is the result of a scoring operation. Exactly one of Result, Violations or
// MissingFields is populated, as indicated by Kind.
type Outcome struct {
	Kind          OutcomeKind      `json:"kind"`
	Model         Model            `json:"model"`
	Shape         Shape            `json:"shape"`
	Result        *RiskResult      `json:"result,omitempty"`
	Violations    []Violation      `json:"violations,omitempty"`
	MissingFields []MissingField   `json:"missingFields,omitempty"`
	Defaulted     []DefaultedField `json:"defaulted,omitempty"`
	Inferred      []string         `json:"inferred,omitempty"`

	// LowConfidence is set when a population default stood in for a measured value
	LowConfidence bool `json:"lowConfidence"`

	// Input is the validated canonical input, present when Kind is OutcomeScored
	Input any `json:"input,omitempty"`
}

// Scored reports whether the outcome carries a RiskResult
func (o Outcome) Scored() bool {
	return o.Kind == OutcomeScored && o.Result != nil
}

// MissingFieldNames returns the bare names of the missing fields
func (o Outcome) MissingFieldNames() []string {
	names := make([]string, len(o.MissingFields))
	for i, m := range o.MissingFields {
		names[i] = m.Field
	}
	return names
}

// ScoreDiabetes reconciles, validates and scores a diabetes payload in either shape
func ScoreDiabetes(p Payload) Outcome {
	rec := ReconcileDiabetes(p)
	out := Outcome{
		Model:         ModelDiabetes,
		Shape:         rec.Shape,
		Defaulted:     rec.Defaulted,
		Inferred:      rec.Inferred,
		LowConfidence: rec.LowConfidence(),
	}
	if len(rec.Missing) > 0 {
		out.Kind = OutcomeMissingFields
		out.MissingFields = describeMissing(ModelDiabetes, rec.Missing)
		return out
	}

	in, violations := ValidateDiabetes(rec.Fields)
	if len(violations) > 0 {
		out.Kind = OutcomeInvalidInput
		out.Violations = violations
		return out
	}

	result := ComputeDiabetes(in)
	out.Kind = OutcomeScored
	out.Result = &result
	out.Input = in
	return out
}

// ScoreCVD reconciles, validates and scores a CVD payload in either shape
func ScoreCVD(p Payload) Outcome {
	rec := ReconcileCVD(p)
	out := Outcome{
		Model: ModelCVD,
		Shape: rec.Shape,
	}
	if len(rec.Missing) > 0 {
		out.Kind = OutcomeMissingFields
		out.MissingFields = describeMissing(ModelCVD, rec.Missing)
		return out
	}

	in, violations := ValidateCVD(rec.Fields)
	if len(violations) > 0 {
		out.Kind = OutcomeInvalidInput
		out.Violations = violations
		return out
	}

	result := ComputeCVD(in)
	out.Kind = OutcomeScored
	out.Result = &result
	out.Input = in
	return out
}

func describeMissing(model Model, fields []string) []MissingField {
	out := make([]MissingField, len(fields))
	for i, f := range fields {
		out[i] = MissingField{Field: f, Reason: missingReasons[model][f]}
	}
	return out
}
