package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/history"
	"github.com/framingham-risk-server/internal/service"
)

type stubConfigManager struct {
	cfg *domain.Config
}

func (m *stubConfigManager) GetConfig() *domain.Config                 { return m.cfg }
func (m *stubConfigManager) GetDatabaseConfig() *domain.DatabaseConfig { return &m.cfg.Database }
func (m *stubConfigManager) GetServerConfig() *domain.ServerConfig     { return &m.cfg.Server }
func (m *stubConfigManager) Reload() error                             { return nil }
func (m *stubConfigManager) Validate() error                           { return nil }
func (m *stubConfigManager) GetDatabaseConnectionString() string       { return "" }
func (m *stubConfigManager) GetRedisConnectionString() string          { return "" }
func (m *stubConfigManager) IsProduction() bool                        { return false }
func (m *stubConfigManager) IsDevelopment() bool                       { return true }

type testServer struct {
	handler http.Handler
	store   *history.SQLiteStore
}

func newTestServer(t *testing.T, withHistory bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))

	cfg := &domain.Config{Environment: "test", Logging: domain.LoggingConfig{Level: "info"}}

	ts := &testServer{}
	var opts []service.Option
	var hist PredictionHistory
	if withHistory {
		store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		ts.store = store
		hist = store
		opts = append(opts, service.WithRecorder(store))
	}

	srv, err := NewServer(&stubConfigManager{cfg: cfg}, service.NewScoringService(logger, opts...), hist, logger)
	require.NoError(t, err)
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestPredictDiabetes(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/predict-diabetes", map[string]any{
		"testId": "t-1", "sex": "female", "age": 55, "bmi": 31, "sbp": 125, "onBpTherapy": false,
		"hdl": 45, "tg": 160, "fastingGlucose": 110, "parentalHistory": true,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "t-1", body["testId"])
	assert.Equal(t, float64(1), body["prediction"])
	assert.InDelta(t, 0.3656324324816123, body["probability"], 1e-12)
	assert.Equal(t, "Computed locally via Framingham Offspring Diabetes Model (2007)", body["message"])
	assert.NotEmpty(t, body["predictionId"])

	raw := body["rawResponse"].(map[string]any)
	assert.Equal(t, "framingham_dm_2007", raw["model"])
	assert.Equal(t, 36.6, raw["riskPercentage"])
	assert.Equal(t, "high", raw["label"])
	assert.Equal(t, false, raw["lowConfidence"])
	assert.Equal(t, "current", raw["shape"])
}

func TestPredictDiabetes_LegacyDefaults(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/predict-diabetes", map[string]any{
		"pregnancies": 2, "glucose": 110, "blood_pressure": 150, "bmi": 31, "age": 45,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Nil(t, body["testId"])
	assert.Equal(t, float64(0), body["prediction"])
	assert.NotEmpty(t, body["warning"])

	raw := body["rawResponse"].(map[string]any)
	assert.Equal(t, "legacy", raw["shape"])
	assert.Equal(t, true, raw["lowConfidence"])
	assert.Equal(t, "intermediate", raw["label"])
	assert.Len(t, raw["defaulted"], 2)
}

func TestPredictHeart(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/predict-heart", map[string]any{
		"sex": "male", "age": 60, "totalChol": 220, "hdl": 40, "sbp": 150,
		"treated": true, "smoker": true, "diabetes": false,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(1), body["prediction"])
	assert.InDelta(t, 0.5233266434313204, body["probability"], 1e-12)
	assert.Equal(t, "Computed locally via Framingham General CVD 10-Year Risk Model (2008)", body["message"])

	raw := body["rawResponse"].(map[string]any)
	assert.Equal(t, "framingham_cvd_2008", raw["model"])
	assert.Equal(t, 52.3, raw["riskPercentage"])
}

func TestPredictHeart_LegacyMissingHDL(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/predict-heart", map[string]any{
		"sex": "male", "age": 60, "totChol": 220, "sysBP": 150,
		"BPMeds": 1, "is_smoking": 1, "diabetes": 0,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Missing required fields for accurate Framingham General CVD risk calculation", body["error"])
	assert.Equal(t, []any{"hdl"}, body["missingFields"])
	assert.Equal(t, "Please provide: hdl. These fields are required for the Framingham General CVD model.", body["message"])
	assert.Contains(t, body["hint"], "old format")
}

func TestPredictHeart_InvalidInput(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/predict-heart", map[string]any{
		"sex": "male", "age": 90, "totalChol": 220, "hdl": 40, "sbp": 150,
		"treated": true, "smoker": true, "diabetes": false,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Invalid input data", body["error"])
	assert.Equal(t, domain.ErrInvalidInput, body["code"])
	assert.Contains(t, body["details"], "age: must be between 30 and 74")
}

func TestPredict_MalformedJSON(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/predict-diabetes", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid input data", decode(t, w)["error"])
}

func TestPriority(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		name           string
		body           any
		status         int
		highRisk       bool
		recommendation string
	}{
		{
			name: "cvd high risk",
			body: map[string]any{"cvd": map[string]any{
				"sex": "male", "age": 60, "totalChol": 220, "hdl": 40, "sbp": 150,
				"treated": true, "smoker": true, "diabetes": false,
			}},
			status:         http.StatusOK,
			highRisk:       true,
			recommendation: service.RecommendScheduleCare,
		},
		{
			name: "cvd low risk",
			body: map[string]any{"cvd": map[string]any{
				"sex": "female", "age": 50, "totalChol": 200, "hdl": 55, "sbp": 120,
				"treated": false, "smoker": false, "diabetes": false,
			}},
			status:         http.StatusOK,
			highRisk:       false,
			recommendation: service.RecommendReassure,
		},
		{
			name:   "empty request",
			body:   map[string]any{},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/priority", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			body := decode(t, w)
			assert.Equal(t, tt.highRisk, body["highRisk"])
			assert.Equal(t, tt.recommendation, body["recommendation"])
			assert.Contains(t, body["outcomes"], "cvd")
		})
	}
}

func TestPredictionHistory(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodPost, "/api/v1/predict-heart", map[string]any{
		"patientId": "patient-1", "sex": "female", "age": 50, "totalChol": 200, "hdl": 55, "sbp": 120,
		"treated": false, "smoker": false, "diabetes": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode(t, w)["predictionId"].(string)

	w = ts.do(t, http.MethodGet, "/api/v1/predictions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.Equal(t, "patient-1", got["patient_id"])
	assert.Equal(t, "framingham_cvd_2008", got["model"])

	w = ts.do(t, http.MethodGet, "/api/v1/predictions?patient_id=patient-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode(t, w)
	assert.Equal(t, float64(1), list["total"])
	assert.Len(t, list["predictions"], 1)

	w = ts.do(t, http.MethodGet, "/api/v1/predictions/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/predictions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/predictions/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestPredictionHistory_Disabled(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodGet, "/api/v1/predictions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
