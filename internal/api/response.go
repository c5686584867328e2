package api

import (
	"fmt"
	"math"
	"strings"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/service"
	"github.com/framingham-risk-server/pkg/framingham"
)

// routeInfo holds the per-model text of a prediction route
type routeInfo struct {
	model        framingham.Model
	displayName  string
	message      string
	failure      string
	legacyHint   string
	defaultsNote string
}

var (
	diabetesRoute = routeInfo{
		model:        framingham.ModelDiabetes,
		displayName:  "Framingham Offspring Diabetes",
		message:      "Computed locally via Framingham Offspring Diabetes Model (2007)",
		failure:      "Failed to process diabetes prediction",
		defaultsNote: "Estimated population defaults were used for HDL and triglycerides. Provide measured values for better accuracy.",
	}
	cvdRoute = routeInfo{
		model:       framingham.ModelCVD,
		displayName: "Framingham General CVD",
		message:     "Computed locally via Framingham General CVD 10-Year Risk Model (2008)",
		failure:     "Failed to process heart disease prediction",
		legacyHint:  "It looks like you're using an old format. The most critical missing field is HDL cholesterol, which is required for accurate cardiovascular risk calculation.",
	}
)

// predictionFlagThreshold is compared against the risk percentage rounded to one decimal
const predictionFlagThreshold = 20.0

type predictionResponse struct {
	TestID       any                `json:"testId"`
	PredictionID string             `json:"predictionId,omitempty"`
	Prediction   int                `json:"prediction"`
	Probability  float64            `json:"probability"`
	Message      string             `json:"message"`
	Warning      string             `json:"warning,omitempty"`
	InputData    framingham.Payload `json:"inputData"`
	RawResponse  rawResponse        `json:"rawResponse"`
}

type rawResponse struct {
	Model          framingham.Model            `json:"model"`
	RiskPercentage float64                     `json:"riskPercentage"`
	Label          framingham.Label            `json:"label"`
	Details        framingham.Details          `json:"details"`
	Shape          framingham.Shape            `json:"shape"`
	Defaulted      []framingham.DefaultedField `json:"defaulted,omitempty"`
	Inferred       []string                    `json:"inferred,omitempty"`
	LowConfidence  bool                        `json:"lowConfidence"`
}

type missingFieldsResponse struct {
	Error         string                    `json:"error"`
	Code          string                    `json:"code"`
	MissingFields []string                  `json:"missingFields"`
	Reasons       []framingham.MissingField `json:"reasons"`
	Message       string                    `json:"message"`
	Hint          string                    `json:"hint"`
}

type errorResponse struct {
	Error      string                 `json:"error"`
	Code       string                 `json:"code,omitempty"`
	Details    string                 `json:"details,omitempty"`
	Violations []framingham.Violation `json:"violations,omitempty"`
}

type priorityResponse struct {
	domain.PriorityAssessment
	Outcomes map[string]*service.Assessment `json:"outcomes"`
}

type listResponse struct {
	Predictions []*domain.Prediction `json:"predictions"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// roundPercentage converts a probability to a percentage with one decimal
func roundPercentage(p float64) float64 {
	return math.Round(p*1000) / 10
}

func predictionFlag(p float64) int {
	if roundPercentage(p) > predictionFlagThreshold {
		return 1
	}
	return 0
}

func newPredictionResponse(route routeInfo, body framingham.Payload, a *service.Assessment) predictionResponse {
	r := a.Result
	resp := predictionResponse{
		TestID:       body["testId"],
		PredictionID: a.PredictionID,
		Prediction:   predictionFlag(r.Probability),
		Probability:  r.Probability,
		Message:      route.message,
		InputData:    body,
		RawResponse: rawResponse{
			Model:          r.Model,
			RiskPercentage: roundPercentage(r.Probability),
			Label:          r.Label,
			Details:        r.Details,
			Shape:          a.Shape,
			Defaulted:      a.Defaulted,
			Inferred:       a.Inferred,
			LowConfidence:  a.LowConfidence,
		},
	}
	if a.LowConfidence {
		resp.Warning = route.defaultsNote
	}
	return resp
}

func newMissingFieldsResponse(route routeInfo, a *service.Assessment) missingFieldsResponse {
	names := a.MissingFieldNames()
	hint := "Please fill in all required fields in the form."
	if a.Shape == framingham.ShapeLegacy && route.legacyHint != "" {
		hint = route.legacyHint
	}
	return missingFieldsResponse{
		Error:         fmt.Sprintf("Missing required fields for accurate %s risk calculation", route.displayName),
		Code:          domain.ErrMissingFields,
		MissingFields: names,
		Reasons:       a.MissingFields,
		Message:       fmt.Sprintf("Please provide: %s. These fields are required for the %s model.", strings.Join(names, ", "), route.displayName),
		Hint:          hint,
	}
}

func newInvalidInputResponse(a *service.Assessment) errorResponse {
	details := make([]string, len(a.Violations))
	for i, v := range a.Violations {
		details[i] = v.String()
	}
	return errorResponse{
		Error:      "Invalid input data",
		Code:       domain.ErrInvalidInput,
		Details:    strings.Join(details, "; "),
		Violations: a.Violations,
	}
}
