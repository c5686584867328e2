package framingham

import (
	"math"
	"strings"
)

// Shape tags which request format a payload was sent in
type Shape string

const (
	ShapeCurrent Shape = "current"
	ShapeLegacy  Shape = "legacy"
)

// Population-average substitutes and heuristics used for legacy diabetes payloads
const (
	PopulationHDL         = 50.0
	PopulationTG          = 120.0
	HypertensionThreshold = 140.0
)

// ShapeDescriptor names the fields that only a legacy payload carries
type ShapeDescriptor struct {
	Name            string
	ExclusiveFields []string
}

// Matches reports whether p carries any of the exclusive fields
func (d ShapeDescriptor) Matches(p Payload) bool {
	for _, f := range d.ExclusiveFields {
		if p.Contains(f) {
			return true
		}
	}
	return false
}

// LegacyDiabetesShape is the PIMA-style form that predates the Framingham fields
var LegacyDiabetesShape = ShapeDescriptor{
	Name:            "legacy_diabetes",
	ExclusiveFields: []string{"pregnancies", "insulin", "skin_thickness", "diabetes_pedigree", "blood_pressure"},
}

// LegacyCVDShape is the Framingham-dataset form with differently named BP and status fields
var LegacyCVDShape = ShapeDescriptor{
	Name:            "legacy_cvd",
	ExclusiveFields: []string{"sysBP", "diaBP", "is_smoking", "BPMeds"},
}

// ClassifyDiabetesPayload returns ShapeLegacy when any legacy-only field is present
func ClassifyDiabetesPayload(p Payload) Shape {
	if LegacyDiabetesShape.Matches(p) {
		return ShapeLegacy
	}
	return ShapeCurrent
}

// ClassifyCVDPayload returns ShapeLegacy when any legacy-only field is present
func ClassifyCVDPayload(p Payload) Shape {
	if LegacyCVDShape.Matches(p) {
		return ShapeLegacy
	}
	return ShapeCurrent
}

// LegacyDiabetesPayload is the typed view of a legacy diabetes request.
// Pregnancies, insulin, skin thickness and pedigree are accepted but unused by the model.
type LegacyDiabetesPayload struct {
	Sex             any
	Age             any
	BMI             any
	BloodPressure   any
	Glucose         any
	FastingGlucose  any
	BPMedication    any
	ParentalHistory any
	HDL             any
	TG              any
}

// CurrentDiabetesPayload is the typed view of a current diabetes request
type CurrentDiabetesPayload struct {
	Sex             any
	Age             any
	BMI             any
	SBP             any
	OnBPTherapy     any
	HDL             any
	TG              any
	FastingGlucose  any
	ParentalHistory any
}

// LegacyCVDPayload is the typed view of a legacy CVD request
type LegacyCVDPayload struct {
	Sex       any
	Age       any
	TotalChol any
	SysBP     any
	IsSmoking any
	BPMeds    any
	Diabetes  any
	HDL       any
}

// CurrentCVDPayload is the typed view of a current CVD request
type CurrentCVDPayload struct {
	Sex       any
	Age       any
	TotalChol any
	HDL       any
	SBP       any
	Treated   any
	Smoker    any
	Diabetes  any
}

func get(p Payload, keys ...string) any {
	v, _ := p.lookup(keys...)
	return v
}

// NewLegacyDiabetesPayload reads the legacy field names out of p
func NewLegacyDiabetesPayload(p Payload) LegacyDiabetesPayload {
	return LegacyDiabetesPayload{
		Sex:             get(p, "sex"),
		Age:             get(p, "age"),
		BMI:             get(p, "bmi", "BMI"),
		BloodPressure:   get(p, "blood_pressure"),
		Glucose:         get(p, "glucose"),
		FastingGlucose:  get(p, "fastingGlucose"),
		BPMedication:    get(p, "onBpTherapy", "BPMeds"),
		ParentalHistory: get(p, "parentalHistory"),
		HDL:             get(p, "hdl"),
		TG:              get(p, "tg"),
	}
}

// NewCurrentDiabetesPayload reads the canonical field names out of p
func NewCurrentDiabetesPayload(p Payload) CurrentDiabetesPayload {
	return CurrentDiabetesPayload{
		Sex:             get(p, "sex"),
		Age:             get(p, "age"),
		BMI:             get(p, "bmi"),
		SBP:             get(p, "sbp"),
		OnBPTherapy:     get(p, "onBpTherapy"),
		HDL:             get(p, "hdl"),
		TG:              get(p, "tg"),
		FastingGlucose:  get(p, "fastingGlucose"),
		ParentalHistory: get(p, "parentalHistory"),
	}
}

// NewLegacyCVDPayload reads the legacy field names out of p
func NewLegacyCVDPayload(p Payload) LegacyCVDPayload {
	return LegacyCVDPayload{
		Sex:       get(p, "sex"),
		Age:       get(p, "age"),
		TotalChol: get(p, "totChol", "totalChol"),
		SysBP:     get(p, "sysBP"),
		IsSmoking: get(p, "is_smoking"),
		BPMeds:    get(p, "BPMeds"),
		Diabetes:  get(p, "diabetes"),
		HDL:       get(p, "hdl"),
	}
}

// NewCurrentCVDPayload reads the canonical field names out of p
func NewCurrentCVDPayload(p Payload) CurrentCVDPayload {
	return CurrentCVDPayload{
		Sex:       get(p, "sex"),
		Age:       get(p, "age"),
		TotalChol: get(p, "totalChol"),
		HDL:       get(p, "hdl"),
		SBP:       get(p, "sbp"),
		Treated:   get(p, "treated"),
		Smoker:    get(p, "smoker"),
		Diabetes:  get(p, "diabetes"),
	}
}

// DefaultedField records a population-average value substituted for a field the client never sent
type DefaultedField struct {
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// DiabetesReconciliation is the outcome of mapping a diabetes payload onto canonical fields
type DiabetesReconciliation struct {
	Fields    DiabetesFields   `json:"mapped"`
	Shape     Shape            `json:"shape"`
	Missing   []string         `json:"missingFields"`
	Defaulted []DefaultedField `json:"defaulted,omitempty"`
	Inferred  []string         `json:"inferred,omitempty"`
}

// LowConfidence reports whether any field was filled with a population default
func (r DiabetesReconciliation) LowConfidence() bool {
	return len(r.Defaulted) > 0
}

// CVDReconciliation is the outcome of mapping a CVD payload onto canonical fields.
// CVD never defaults a field.
type CVDReconciliation struct {
	Fields  CVDFields `json:"mapped"`
	Shape   Shape     `json:"shape"`
	Missing []string  `json:"missingFields"`
}

// ReconcileDiabetes maps either diabetes shape onto canonical fields
func ReconcileDiabetes(p Payload) DiabetesReconciliation {
	r := DiabetesReconciliation{Shape: ClassifyDiabetesPayload(p)}
	if r.Shape == ShapeLegacy {
		mapLegacyDiabetes(NewLegacyDiabetesPayload(p), &r)
	} else {
		r.Fields = mapCurrentDiabetes(NewCurrentDiabetesPayload(p))
	}
	r.Missing = unresolved(DiabetesRequiredFields, r.Fields.Resolved(), r.Fields.Unparsed)
	return r
}

// ReconcileCVD maps either CVD shape onto canonical fields.
// HDL has no legacy equivalent and is reported missing rather than defaulted.
func ReconcileCVD(p Payload) CVDReconciliation {
	r := CVDReconciliation{Shape: ClassifyCVDPayload(p)}
	if r.Shape == ShapeLegacy {
		r.Fields = mapLegacyCVD(NewLegacyCVDPayload(p))
	} else {
		r.Fields = mapCurrentCVD(NewCurrentCVDPayload(p))
	}
	r.Missing = unresolved(CVDRequiredFields, r.Fields.Resolved(), r.Fields.Unparsed)
	return r
}

func mapLegacyDiabetes(lp LegacyDiabetesPayload, r *DiabetesReconciliation) {
	var sink fieldSink
	f := &r.Fields

	if truthy(lp.Age) {
		f.Age = sink.number("age", lp.Age)
	}
	if truthy(lp.BMI) {
		f.BMI = sink.number("bmi", lp.BMI)
	}
	if truthy(lp.BloodPressure) {
		f.SBP = sink.number("sbp", lp.BloodPressure)
	}

	// The legacy dataset is all female
	if truthy(lp.Sex) {
		if isMale(lp.Sex) {
			f.Sex = ptr(string(SexMale))
		} else {
			f.Sex = ptr(string(SexFemale))
		}
	} else {
		f.Sex = ptr(string(SexFemale))
		r.Inferred = append(r.Inferred, "sex")
	}

	switch {
	case truthy(lp.FastingGlucose):
		f.FastingGlucose = sink.number("fastingGlucose", lp.FastingGlucose)
	case truthy(lp.Glucose):
		f.FastingGlucose = sink.number("fastingGlucose", lp.Glucose)
		r.Inferred = append(r.Inferred, "fastingGlucose")
	}

	if lp.BPMedication != nil {
		f.OnBPTherapy = sink.flag("onBpTherapy", lp.BPMedication)
	} else {
		bp, _ := asNumber(lp.BloodPressure)
		f.OnBPTherapy = ptr(!math.IsNaN(bp) && bp > HypertensionThreshold)
		r.Inferred = append(r.Inferred, "onBpTherapy")
	}

	if lp.ParentalHistory != nil {
		f.ParentalHistory = sink.flag("parentalHistory", lp.ParentalHistory)
	} else {
		f.ParentalHistory = ptr(false)
		r.Inferred = append(r.Inferred, "parentalHistory")
	}

	if truthy(lp.HDL) {
		f.HDL = sink.number("hdl", lp.HDL)
	} else {
		f.HDL = ptr(PopulationHDL)
		r.Defaulted = append(r.Defaulted, DefaultedField{
			Field:  "hdl",
			Value:  PopulationHDL,
			Reason: "HDL not provided, population average used",
		})
	}

	if truthy(lp.TG) {
		f.TG = sink.number("tg", lp.TG)
	} else {
		f.TG = ptr(PopulationTG)
		r.Defaulted = append(r.Defaulted, DefaultedField{
			Field:  "tg",
			Value:  PopulationTG,
			Reason: "Triglycerides not provided, population average used",
		})
	}

	f.Unparsed = sink.unparsed
}

func mapCurrentDiabetes(cp CurrentDiabetesPayload) DiabetesFields {
	var sink fieldSink
	f := DiabetesFields{}
	if truthy(cp.Sex) {
		f.Sex = sink.text("sex", cp.Sex)
	}
	if cp.Age != nil {
		f.Age = sink.number("age", cp.Age)
	}
	if cp.BMI != nil {
		f.BMI = sink.number("bmi", cp.BMI)
	}
	if cp.SBP != nil {
		f.SBP = sink.number("sbp", cp.SBP)
	}
	if cp.OnBPTherapy != nil {
		f.OnBPTherapy = sink.flag("onBpTherapy", cp.OnBPTherapy)
	}
	if cp.HDL != nil {
		f.HDL = sink.number("hdl", cp.HDL)
	}
	if cp.TG != nil {
		f.TG = sink.number("tg", cp.TG)
	}
	if cp.FastingGlucose != nil {
		f.FastingGlucose = sink.number("fastingGlucose", cp.FastingGlucose)
	}
	if cp.ParentalHistory != nil {
		f.ParentalHistory = sink.flag("parentalHistory", cp.ParentalHistory)
	}
	f.Unparsed = sink.unparsed
	return f
}

func mapLegacyCVD(lp LegacyCVDPayload) CVDFields {
	var sink fieldSink
	f := CVDFields{}
	if truthy(lp.Sex) {
		switch {
		case isMale(lp.Sex):
			f.Sex = ptr(string(SexMale))
		case isFemale(lp.Sex):
			f.Sex = ptr(string(SexFemale))
		}
	}
	if truthy(lp.Age) {
		f.Age = sink.number("age", lp.Age)
	}
	if truthy(lp.TotalChol) {
		f.TotalChol = sink.number("totalChol", lp.TotalChol)
	}
	if truthy(lp.SysBP) {
		f.SBP = sink.number("sbp", lp.SysBP)
	}
	if lp.IsSmoking != nil {
		f.Smoker = sink.flag("smoker", lp.IsSmoking)
	}
	if lp.BPMeds != nil {
		f.Treated = sink.flag("treated", lp.BPMeds)
	}
	if lp.Diabetes != nil {
		f.Diabetes = sink.flag("diabetes", lp.Diabetes)
	}
	if truthy(lp.HDL) {
		f.HDL = sink.number("hdl", lp.HDL)
	}
	f.Unparsed = sink.unparsed
	return f
}

func mapCurrentCVD(cp CurrentCVDPayload) CVDFields {
	var sink fieldSink
	f := CVDFields{}
	if truthy(cp.Sex) {
		f.Sex = sink.text("sex", cp.Sex)
	}
	if cp.Age != nil {
		f.Age = sink.number("age", cp.Age)
	}
	if cp.TotalChol != nil {
		f.TotalChol = sink.number("totalChol", cp.TotalChol)
	}
	if cp.HDL != nil {
		f.HDL = sink.number("hdl", cp.HDL)
	}
	if cp.SBP != nil {
		f.SBP = sink.number("sbp", cp.SBP)
	}
	if cp.Treated != nil {
		f.Treated = sink.flag("treated", cp.Treated)
	}
	if cp.Smoker != nil {
		f.Smoker = sink.flag("smoker", cp.Smoker)
	}
	if cp.Diabetes != nil {
		f.Diabetes = sink.flag("diabetes", cp.Diabetes)
	}
	f.Unparsed = sink.unparsed
	return f
}

func isMale(v any) bool {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "M") || strings.EqualFold(s, "male")
}

func isFemale(v any) bool {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "F") || strings.EqualFold(s, "female")
}

// unresolved diffs the resolved fields against the required list, keeping its order.
// Fields that were sent but failed coercion are not missing; validation reports them.
func unresolved(required []string, resolved map[string]bool, unparsed []Violation) []string {
	skip := make(map[string]bool, len(unparsed))
	for _, u := range unparsed {
		skip[u.Field] = true
	}
	missing := []string{}
	for _, field := range required {
		if !resolved[field] && !skip[field] {
			missing = append(missing, field)
		}
	}
	return missing
}
