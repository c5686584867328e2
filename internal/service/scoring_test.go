package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/pkg/framingham"
)

type fakeRecorder struct {
	mu    sync.Mutex
	saved []*domain.Prediction
	err   error
}

func (f *fakeRecorder) Save(ctx context.Context, p *domain.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.HighRiskEvent
	err    error
}

func (f *fakePublisher) PublishHighRisk(ctx context.Context, e domain.HighRiskEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func highRiskCVDPayload() framingham.Payload {
	return framingham.Payload{
		"sex": "male", "age": 60.0, "totalChol": 220.0, "hdl": 40.0, "sbp": 150.0,
		"treated": true, "smoker": true, "diabetes": false,
	}
}

func lowRiskCVDPayload() framingham.Payload {
	return framingham.Payload{
		"sex": "female", "age": 50.0, "totalChol": 200.0, "hdl": 55.0, "sbp": 120.0,
		"treated": false, "smoker": false, "diabetes": false,
	}
}

func TestScoringService_ScoreCVD(t *testing.T) {
	logger, _ := newTestLogger()
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	svc := NewScoringService(logger, WithRecorder(rec), WithPublisher(pub))
	svc.newID = func() string { return "pred-1" }

	a := svc.ScoreCVD(context.Background(), domain.ScoreRequest{
		Payload:   highRiskCVDPayload(),
		PatientID: "patient-7",
		TestID:    "test-3",
		RequestID: "req-1",
	})

	require.True(t, a.Scored())
	assert.Equal(t, "pred-1", a.PredictionID)
	assert.InDelta(t, 0.5233266434313204, a.Result.Probability, 1e-12)

	require.Len(t, rec.saved, 1)
	saved := rec.saved[0]
	assert.Equal(t, "pred-1", saved.ID)
	assert.Equal(t, "patient-7", saved.PatientID)
	assert.Equal(t, "test-3", saved.TestID)
	assert.Equal(t, "req-1", saved.RequestID)
	assert.Equal(t, string(framingham.ModelCVD), saved.Model)
	assert.Equal(t, string(framingham.LabelHigh), saved.Label)
	assert.Contains(t, string(saved.Input), `"totalChol":220`)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "pred-1", pub.events[0].PredictionID)
	assert.Equal(t, "patient-7", pub.events[0].PatientID)
}

func TestScoringService_NoEventBelowThreshold(t *testing.T) {
	logger, _ := newTestLogger()
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	svc := NewScoringService(logger, WithRecorder(rec), WithPublisher(pub))

	a := svc.ScoreCVD(context.Background(), domain.ScoreRequest{Payload: lowRiskCVDPayload()})

	require.True(t, a.Scored())
	assert.NotEmpty(t, a.PredictionID)
	assert.Len(t, rec.saved, 1)
	assert.Empty(t, pub.events)
}

func TestScoringService_UnscoredOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		payload framingham.Payload
		kind    framingham.OutcomeKind
	}{
		{
			name:    "legacy CVD without hdl",
			payload: framingham.Payload{"age": 55.0, "gender": 1.0, "totChol": 230.0, "sysBP": 140.0},
			kind:    framingham.OutcomeMissingFields,
		},
		{
			name: "out of range age",
			payload: func() framingham.Payload {
				p := lowRiskCVDPayload()
				p["age"] = 90.0
				return p
			}(),
			kind: framingham.OutcomeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			rec := &fakeRecorder{}
			svc := NewScoringService(logger, WithRecorder(rec))

			a := svc.ScoreCVD(context.Background(), domain.ScoreRequest{Payload: tt.payload})

			assert.Equal(t, tt.kind, a.Kind)
			assert.False(t, a.Scored())
			assert.Empty(t, a.PredictionID)
			assert.Zero(t, rec.count())
		})
	}
}

func TestScoringService_LowConfidenceWarns(t *testing.T) {
	logger, hook := newTestLogger()
	svc := NewScoringService(logger)

	a := svc.ScoreDiabetes(context.Background(), domain.ScoreRequest{Payload: framingham.Payload{
		"pregnancies": 2.0, "glucose": 110.0, "blood_pressure": 150.0, "bmi": 31.0, "age": 45.0,
	}})

	require.True(t, a.Scored())
	assert.True(t, a.LowConfidence)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for defaulted fields")
}

func TestScoringService_RecorderFailureDoesNotFailScore(t *testing.T) {
	logger, hook := newTestLogger()
	rec := &fakeRecorder{err: errors.New("disk full")}
	pub := &fakePublisher{err: errors.New("redis down")}
	svc := NewScoringService(logger, WithRecorder(rec), WithPublisher(pub))

	a := svc.ScoreCVD(context.Background(), domain.ScoreRequest{Payload: highRiskCVDPayload()})

	require.True(t, a.Scored())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestScoringService_AsyncRecording(t *testing.T) {
	logger, _ := newTestLogger()
	rec := &fakeRecorder{}
	svc := NewScoringService(logger, WithRecorder(rec), WithAsyncRecording(true))

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 10; i++ {
		svc.ScoreCVD(ctx, domain.ScoreRequest{Payload: lowRiskCVDPayload()})
	}
	cancel()
	svc.Wait()

	assert.Equal(t, 10, rec.count())
}

func TestScoringService_AssessPriority(t *testing.T) {
	logger, _ := newTestLogger()
	svc := NewScoringService(logger)

	low := &framingham.RiskResult{Probability: 0.05}
	edge := &framingham.RiskResult{Probability: 0.20}
	justBelow := &framingham.RiskResult{Probability: 0.1999}

	tests := []struct {
		name           string
		diabetes       *framingham.RiskResult
		cvd            *framingham.RiskResult
		highRisk       bool
		maxProbability float64
		recommendation string
	}{
		{"nothing scored", nil, nil, false, 0, RecommendInsufficient},
		{"both low", low, justBelow, false, 0.1999, RecommendReassure},
		{"threshold is inclusive", edge, nil, true, 0.20, RecommendScheduleCare},
		{"cvd alone high", nil, edge, true, 0.20, RecommendScheduleCare},
		{"max wins", low, edge, true, 0.20, RecommendScheduleCare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa := svc.AssessPriority(tt.diabetes, tt.cvd)
			assert.Equal(t, tt.highRisk, pa.HighRisk)
			assert.InDelta(t, tt.maxProbability, pa.MaxProbability, 1e-12)
			assert.Equal(t, tt.recommendation, pa.Recommendation)
		})
	}
}
