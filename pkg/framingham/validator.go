package framingham

import (
	"fmt"
	"math"
)

// Bound is the inclusive valid range of a numeric field
type Bound struct {
	Field string
	Min   float64
	Max   float64
}

// Contains reports whether x lies within the bound, inclusive
func (b Bound) Contains(x float64) bool {
	return x >= b.Min && x <= b.Max
}

var diabetesBounds = []Bound{
	{Field: "age", Min: 20, Max: 79},
	{Field: "bmi", Min: 15, Max: 60},
	{Field: "sbp", Min: 90, Max: 200},
	{Field: "hdl", Min: 20, Max: 100},
	{Field: "tg", Min: 30, Max: 1000},
	{Field: "fastingGlucose", Min: 60, Max: 200},
}

var cvdBounds = []Bound{
	{Field: "age", Min: 30, Max: 74},
	{Field: "totalChol", Min: 100, Max: 405},
	{Field: "hdl", Min: 20, Max: 100},
	{Field: "sbp", Min: 90, Max: 200},
}

// DiabetesRequiredFields lists the canonical diabetes fields in reporting order
var DiabetesRequiredFields = []string{
	"sex", "age", "bmi", "sbp", "onBpTherapy", "hdl", "tg", "fastingGlucose", "parentalHistory",
}

// CVDRequiredFields lists the canonical CVD fields in reporting order
var CVDRequiredFields = []string{
	"sex", "age", "totalChol", "hdl", "sbp", "treated", "smoker", "diabetes",
}

// DiabetesBounds returns a copy of the diabetes range table
func DiabetesBounds() []Bound {
	return append([]Bound(nil), diabetesBounds...)
}

// CVDBounds returns a copy of the CVD range table
func CVDBounds() []Bound {
	return append([]Bound(nil), cvdBounds...)
}

// DiabetesFields is a possibly incomplete diabetes input as produced by reconciliation.
// A nil pointer means the field was not resolved.
type DiabetesFields struct {
	Sex             *string  `json:"sex,omitempty"`
	Age             *float64 `json:"age,omitempty"`
	BMI             *float64 `json:"bmi,omitempty"`
	SBP             *float64 `json:"sbp,omitempty"`
	OnBPTherapy     *bool    `json:"onBpTherapy,omitempty"`
	HDL             *float64 `json:"hdl,omitempty"`
	TG              *float64 `json:"tg,omitempty"`
	FastingGlucose  *float64 `json:"fastingGlucose,omitempty"`
	ParentalHistory *bool    `json:"parentalHistory,omitempty"`

	// Unparsed records fields that were present but could not be coerced
	Unparsed []Violation `json:"-"`
}

// CVDFields is a possibly incomplete CVD input as produced by reconciliation
type CVDFields struct {
	Sex       *string  `json:"sex,omitempty"`
	Age       *float64 `json:"age,omitempty"`
	TotalChol *float64 `json:"totalChol,omitempty"`
	HDL       *float64 `json:"hdl,omitempty"`
	SBP       *float64 `json:"sbp,omitempty"`
	Treated   *bool    `json:"treated,omitempty"`
	Smoker    *bool    `json:"smoker,omitempty"`
	Diabetes  *bool    `json:"diabetes,omitempty"`

	Unparsed []Violation `json:"-"`
}

// Resolved reports which canonical fields carry a value
func (f DiabetesFields) Resolved() map[string]bool {
	return map[string]bool{
		"sex":             f.Sex != nil,
		"age":             f.Age != nil,
		"bmi":             f.BMI != nil,
		"sbp":             f.SBP != nil,
		"onBpTherapy":     f.OnBPTherapy != nil,
		"hdl":             f.HDL != nil,
		"tg":              f.TG != nil,
		"fastingGlucose":  f.FastingGlucose != nil,
		"parentalHistory": f.ParentalHistory != nil,
	}
}

// Resolved reports which canonical fields carry a value
func (f CVDFields) Resolved() map[string]bool {
	return map[string]bool{
		"sex":       f.Sex != nil,
		"age":       f.Age != nil,
		"totalChol": f.TotalChol != nil,
		"hdl":       f.HDL != nil,
		"sbp":       f.SBP != nil,
		"treated":   f.Treated != nil,
		"smoker":    f.Smoker != nil,
		"diabetes":  f.Diabetes != nil,
	}
}

// ValidateDiabetes checks presence, type and range of every diabetes field.
// The input is only meaningful when the violation list is empty.
func ValidateDiabetes(f DiabetesFields) (DiabetesInput, []Violation) {
	c := newChecker(diabetesBounds, f.Unparsed)
	in := DiabetesInput{
		Sex:             c.sex(f.Sex),
		Age:             c.number("age", f.Age),
		BMI:             c.number("bmi", f.BMI),
		SBP:             c.number("sbp", f.SBP),
		OnBPTherapy:     c.flag("onBpTherapy", f.OnBPTherapy),
		HDL:             c.number("hdl", f.HDL),
		TG:              c.number("tg", f.TG),
		FastingGlucose:  c.number("fastingGlucose", f.FastingGlucose),
		ParentalHistory: c.flag("parentalHistory", f.ParentalHistory),
	}
	return in, c.violations
}

// ValidateCVD checks presence, type and range of every CVD field
func ValidateCVD(f CVDFields) (CVDInput, []Violation) {
	c := newChecker(cvdBounds, f.Unparsed)
	in := CVDInput{
		Sex:       c.sex(f.Sex),
		Age:       c.number("age", f.Age),
		TotalChol: c.number("totalChol", f.TotalChol),
		HDL:       c.number("hdl", f.HDL),
		SBP:       c.number("sbp", f.SBP),
		Treated:   c.flag("treated", f.Treated),
		Smoker:    c.flag("smoker", f.Smoker),
		Diabetes:  c.flag("diabetes", f.Diabetes),
	}
	return in, c.violations
}

type checker struct {
	bounds     map[string]Bound
	unparsed   map[string]string
	violations []Violation
}

func newChecker(bounds []Bound, unparsed []Violation) *checker {
	c := &checker{
		bounds:   make(map[string]Bound, len(bounds)),
		unparsed: make(map[string]string, len(unparsed)),
	}
	for _, b := range bounds {
		c.bounds[b.Field] = b
	}
	for _, u := range unparsed {
		c.unparsed[u.Field] = u.Reason
	}
	return c
}

func (c *checker) fail(field, reason string) {
	c.violations = append(c.violations, Violation{Field: field, Reason: reason})
}

func (c *checker) missing(field string) {
	if reason, ok := c.unparsed[field]; ok {
		c.fail(field, reason)
		return
	}
	c.fail(field, "is required")
}

func (c *checker) sex(v *string) Sex {
	if v == nil {
		c.missing("sex")
		return ""
	}
	s := Sex(*v)
	if !s.Valid() {
		c.fail("sex", fmt.Sprintf("must be one of %q or %q, got %q", SexMale, SexFemale, *v))
		return ""
	}
	return s
}

func (c *checker) number(field string, v *float64) float64 {
	if v == nil {
		c.missing(field)
		return 0
	}
	x := *v
	if math.IsNaN(x) || math.IsInf(x, 0) {
		c.fail(field, "must be a number")
		return 0
	}
	b, ok := c.bounds[field]
	if ok && !b.Contains(x) {
		c.fail(field, fmt.Sprintf("must be between %g and %g, got %g", b.Min, b.Max, x))
		return 0
	}
	return x
}

func (c *checker) flag(field string, v *bool) bool {
	if v == nil {
		c.missing(field)
		return false
	}
	return *v
}
