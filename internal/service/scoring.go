// Package service runs the risk models on behalf of the transports and handles
// everything around a score: logging, audit recording and high-risk notification.
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/pkg/framingham"
)

// Recommendations attached to a PriorityAssessment
const (
	RecommendScheduleCare = "schedule_care"
	RecommendReassure     = "routine_monitoring"
	RecommendInsufficient = "insufficient_data"
)

// Assessment is the outcome of one scoring request
type Assessment struct {
	framingham.Outcome

	// PredictionID identifies the audit record; set only for scored outcomes
	PredictionID string `json:"predictionId,omitempty"`
}

// ScoringService wraps the framingham package for the HTTP and MCP transports
type ScoringService struct {
	logger    *logrus.Logger
	recorder  domain.PredictionRecorder
	publisher domain.EventPublisher
	async     bool
	wg        sync.WaitGroup
	newID     func() string
	now       func() time.Time
}

// Option configures a ScoringService
type Option func(*ScoringService)

// WithRecorder records every scored prediction
func WithRecorder(r domain.PredictionRecorder) Option {
	return func(s *ScoringService) { s.recorder = r }
}

// WithPublisher notifies about high-risk predictions
func WithPublisher(p domain.EventPublisher) Option {
	return func(s *ScoringService) { s.publisher = p }
}

// WithAsyncRecording moves recording and publishing off the request path
func WithAsyncRecording(async bool) Option {
	return func(s *ScoringService) { s.async = async }
}

// NewScoringService creates a new scoring service
func NewScoringService(logger *logrus.Logger, opts ...Option) *ScoringService {
	s := &ScoringService{
		logger: logger,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreDiabetes scores an 8-year diabetes request
func (s *ScoringService) ScoreDiabetes(ctx context.Context, req domain.ScoreRequest) *Assessment {
	return s.score(ctx, req, framingham.ScoreDiabetes(req.Payload))
}

// ScoreCVD scores a 10-year cardiovascular request
func (s *ScoringService) ScoreCVD(ctx context.Context, req domain.ScoreRequest) *Assessment {
	return s.score(ctx, req, framingham.ScoreCVD(req.Payload))
}

func (s *ScoringService) score(ctx context.Context, req domain.ScoreRequest, out framingham.Outcome) *Assessment {
	fields := logrus.Fields{
		"request_id": req.RequestID,
		"model":      out.Model,
		"shape":      out.Shape,
	}

	switch out.Kind {
	case framingham.OutcomeMissingFields:
		s.logger.WithFields(fields).WithField("missing_fields", out.MissingFieldNames()).
			Info("Risk request is missing required fields")
		return &Assessment{Outcome: out}
	case framingham.OutcomeInvalidInput:
		s.logger.WithFields(fields).WithField("violations", len(out.Violations)).
			Info("Risk request failed validation")
		return &Assessment{Outcome: out}
	}

	if out.LowConfidence {
		defaulted := make([]string, len(out.Defaulted))
		for i, d := range out.Defaulted {
			defaulted[i] = d.Field
		}
		s.logger.WithFields(fields).WithField("defaulted", defaulted).
			Warn("Scored with population defaults; result is low confidence")
	}

	a := &Assessment{Outcome: out, PredictionID: s.newID()}
	s.logger.WithFields(fields).WithFields(logrus.Fields{
		"prediction_id": a.PredictionID,
		"probability":   out.Result.Probability,
		"label":         out.Result.Label,
	}).Info("Risk scored")

	s.afterScore(ctx, req, a)
	return a
}

// afterScore records the prediction and publishes a high-risk event.
// Failures are logged and never reach the caller.
func (s *ScoringService) afterScore(ctx context.Context, req domain.ScoreRequest, a *Assessment) {
	if s.recorder == nil && s.publisher == nil {
		return
	}

	pred := s.buildPrediction(req, a)
	run := func(ctx context.Context) {
		if s.recorder != nil {
			if err := s.recorder.Save(ctx, pred); err != nil {
				s.logger.WithError(err).WithField("prediction_id", pred.ID).Warn("Failed to record prediction")
			}
		}
		if s.publisher != nil && framingham.IsHighRisk(*a.Result) {
			event := domain.HighRiskEvent{
				PredictionID: pred.ID,
				PatientID:    pred.PatientID,
				TestID:       pred.TestID,
				Model:        pred.Model,
				Probability:  pred.Probability,
				Label:        pred.Label,
				OccurredAt:   pred.CreatedAt,
			}
			if err := s.publisher.PublishHighRisk(ctx, event); err != nil {
				s.logger.WithError(err).WithField("prediction_id", pred.ID).Warn("Failed to publish high-risk event")
			}
		}
	}

	if !s.async {
		run(ctx)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(context.WithoutCancel(ctx))
	}()
}

func (s *ScoringService) buildPrediction(req domain.ScoreRequest, a *Assessment) *domain.Prediction {
	input, err := json.Marshal(a.Input)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode prediction input")
		input = []byte("{}")
	}
	return &domain.Prediction{
		ID:            a.PredictionID,
		PatientID:     req.PatientID,
		TestID:        req.TestID,
		RequestID:     req.RequestID,
		Model:         string(a.Model),
		Shape:         string(a.Shape),
		Input:         input,
		Probability:   a.Result.Probability,
		Label:         string(a.Result.Label),
		LowConfidence: a.LowConfidence,
		CreatedAt:     s.now(),
	}
}

// AssessPriority applies the global high-risk rule to whichever results are present
func (s *ScoringService) AssessPriority(diabetes, cvd *framingham.RiskResult) domain.PriorityAssessment {
	var results []framingham.RiskResult
	if diabetes != nil {
		results = append(results, *diabetes)
	}
	if cvd != nil {
		results = append(results, *cvd)
	}

	pa := domain.PriorityAssessment{
		Diabetes:       diabetes,
		CVD:            cvd,
		MaxProbability: framingham.MaxProbability(results...),
		HighRisk:       framingham.IsHighRisk(results...),
	}
	switch {
	case len(results) == 0:
		pa.Recommendation = RecommendInsufficient
	case pa.HighRisk:
		pa.Recommendation = RecommendScheduleCare
	default:
		pa.Recommendation = RecommendReassure
	}

	s.logger.WithFields(logrus.Fields{
		"max_probability": pa.MaxProbability,
		"high_risk":       pa.HighRisk,
	}).Debug("Priority assessed")
	return pa
}

// Wait blocks until background recording has finished
func (s *ScoringService) Wait() {
	s.wg.Wait()
}
