package domain

import (
	"encoding/json"
	"time"

	"github.com/framingham-risk-server/pkg/framingham"
)

// Prediction is the audit record of one scored request
type Prediction struct {
	ID            string          `json:"id"`
	PatientID     string          `json:"patient_id,omitempty"`
	TestID        string          `json:"test_id,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	Model         string          `json:"model"`
	Shape         string          `json:"shape"`
	Input         json.RawMessage `json:"input"`
	Probability   float64         `json:"probability"`
	Label         string          `json:"label"`
	LowConfidence bool            `json:"low_confidence"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PredictionFilter narrows history listings. Zero values match everything.
type PredictionFilter struct {
	PatientID string
	Model     string
	Label     string
	Since     time.Time
	Limit     int
	Offset    int
}

// RiskSummary aggregates predictions per model and label
type RiskSummary struct {
	Model          string  `json:"model"`
	Label          string  `json:"label"`
	Count          int     `json:"count"`
	AvgProbability float64 `json:"avg_probability"`
}

// ScoreRequest carries a raw payload and the request metadata recorded alongside it
type ScoreRequest struct {
	Payload   framingham.Payload
	PatientID string
	TestID    string
	RequestID string
}

// PriorityAssessment combines the two models under the global high-risk rule
type PriorityAssessment struct {
	Diabetes       *framingham.RiskResult `json:"diabetes,omitempty"`
	CVD            *framingham.RiskResult `json:"cvd,omitempty"`
	MaxProbability float64                `json:"maxProbability"`
	HighRisk       bool                   `json:"highRisk"`
	Recommendation string                 `json:"recommendation"`
}

// HighRiskEvent is published when a prediction crosses the high-risk threshold
type HighRiskEvent struct {
	PredictionID string    `json:"prediction_id"`
	PatientID    string    `json:"patient_id,omitempty"`
	TestID       string    `json:"test_id,omitempty"`
	Model        string    `json:"model"`
	Probability  float64   `json:"probability"`
	Label        string    `json:"label"`
	OccurredAt   time.Time `json:"occurred_at"`
}
