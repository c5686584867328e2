package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framingham-risk-server/internal/config"
	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/history"
	"github.com/framingham-risk-server/internal/service"
	"github.com/framingham-risk-server/pkg/framingham"
)

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newTestServer(t *testing.T) (*Server, *history.SQLiteStore) {
	t.Helper()
	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := newTestLogger()
	scorer := service.NewScoringService(logger, service.WithRecorder(store))
	srv := NewServer(domain.MCPConfig{ServerName: "test", ServerVersion: "v0"}, scorer, logger,
		WithHistory(store, 10), WithExportDir(filepath.Join(t.TempDir(), "exports")))
	return srv, store
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func cvdPayload(age float64) map[string]any {
	return map[string]any{
		"sex": "male", "age": age, "totalChol": 220.0, "hdl": 40.0, "sbp": 150.0,
		"treated": true, "smoker": true, "diabetes": false,
	}
}

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
	assert.Equal(t, 10, srv.historyLimit)
}

func TestScoreCVDTool(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	res, _, err := srv.handleScoreCVD(ctx, nil, ScoreParams{Payload: cvdPayload(60), PatientID: "p-1"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	out := decodeResult[map[string]any](t, res)
	assert.Equal(t, string(framingham.OutcomeScored), out["kind"])
	assert.NotEmpty(t, out["predictionId"])
	result := out["result"].(map[string]any)
	assert.InDelta(t, 0.5233266434313204, result["probability"], 1e-12)

	n, err := store.Count(ctx, domain.PredictionFilter{PatientID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScoreTools_UnscoredOutcomes(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() (*mcp.CallToolResult, any, error)
		kind    framingham.OutcomeKind
		isError bool
	}{
		{
			name: "cvd out of range",
			call: func() (*mcp.CallToolResult, any, error) {
				return srv.handleScoreCVD(ctx, nil, ScoreParams{Payload: cvdPayload(20)})
			},
			kind: framingham.OutcomeInvalidInput,
		},
		{
			name: "legacy cvd without hdl",
			call: func() (*mcp.CallToolResult, any, error) {
				return srv.handleScoreCVD(ctx, nil, ScoreParams{Payload: map[string]any{
					"sex": "male", "age": 60.0, "totChol": 220.0, "sysBP": 150.0,
					"BPMeds": 1.0, "is_smoking": 1.0, "diabetes": 0.0,
				}})
			},
			kind: framingham.OutcomeMissingFields,
		},
		{
			name: "diabetes empty payload",
			call: func() (*mcp.CallToolResult, any, error) {
				return srv.handleScoreDiabetes(ctx, nil, ScoreParams{})
			},
			isError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := tt.call()
			require.NoError(t, err)
			assert.Equal(t, tt.isError, res.IsError)
			if tt.isError {
				return
			}
			out := decodeResult[map[string]any](t, res)
			assert.Equal(t, string(tt.kind), out["kind"])
			assert.Nil(t, out["predictionId"])
		})
	}
}

func TestAssessPriorityTool(t *testing.T) {
	srv, _ := newTestServer(t)

	res, _, err := srv.handleAssessPriority(context.Background(), nil, PriorityParams{CVD: cvdPayload(60)})
	require.NoError(t, err)
	out := decodeResult[map[string]any](t, res)
	assert.Equal(t, true, out["highRisk"])
	assert.Equal(t, service.RecommendScheduleCare, out["recommendation"])

	res, _, err = srv.handleAssessPriority(context.Background(), nil, PriorityParams{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestPredictionHistoryTool(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	for _, age := range []float64{45, 55, 65} {
		_, _, err := srv.handleScoreCVD(ctx, nil, ScoreParams{Payload: cvdPayload(age), PatientID: "p-2"})
		require.NoError(t, err)
	}

	res, _, err := srv.handlePredictionHistory(ctx, nil, HistoryParams{PatientID: "p-2", Limit: 2})
	require.NoError(t, err)
	out := decodeResult[HistoryResult](t, res)
	assert.Equal(t, 3, out.Total)
	assert.Len(t, out.Predictions, 2)

	res, _, err = srv.handlePredictionHistory(ctx, nil, HistoryParams{PatientID: "nobody"})
	require.NoError(t, err)
	out = decodeResult[HistoryResult](t, res)
	assert.Zero(t, out.Total)
	assert.NotNil(t, out.Predictions)
}

func TestExportPredictionsTool(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.handleScoreCVD(ctx, nil, ScoreParams{Payload: cvdPayload(60)})
	require.NoError(t, err)

	for _, format := range []string{"xlsx", "json"} {
		t.Run(format, func(t *testing.T) {
			res, _, err := srv.handleExportPredictions(ctx, nil, ExportParams{Format: format})
			require.NoError(t, err)
			require.False(t, res.IsError, resultText(t, res))

			out := decodeResult[ExportResult](t, res)
			assert.Equal(t, format, out.Format)
			info, err := os.Stat(out.Path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}

	res, _, err := srv.handleExportPredictions(ctx, nil, ExportParams{Format: "csv"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewLiteServer(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	lite, err := NewLiteServer(cfg, WithLogger(newTestLogger()))
	require.NoError(t, err)
	assert.NotNil(t, lite.Server())
	assert.NotNil(t, lite.HistoryStore())
	assert.FileExists(t, cfg.HistoryDBPath())
	assert.DirExists(t, cfg.ExportDir())
	assert.NoError(t, lite.Close())
}

func TestNewLiteServer_HistoryDisabled(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.HistoryEnabled = false

	lite, err := NewLiteServer(cfg, WithLogger(newTestLogger()))
	require.NoError(t, err)
	assert.Nil(t, lite.HistoryStore())
	assert.NoError(t, lite.Close())
}

func TestNewLiteServer_UnsupportedTransport(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.Transport = "websocket"

	_, err := NewLiteServer(cfg)
	assert.Error(t, err)
}
