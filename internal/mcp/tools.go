package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/service"
	"github.com/framingham-risk-server/pkg/framingham"
)

// ScoreParams defines parameters for the score_diabetes and score_cvd tools
type ScoreParams struct {
	Payload   map[string]any `json:"payload"`
	PatientID string         `json:"patient_id,omitempty"`
	TestID    string         `json:"test_id,omitempty"`
}

// PriorityParams defines parameters for the assess_priority tool
type PriorityParams struct {
	Diabetes map[string]any `json:"diabetes,omitempty"`
	CVD      map[string]any `json:"cvd,omitempty"`
}

// PriorityResult is the assess_priority output
type PriorityResult struct {
	domain.PriorityAssessment
	Outcomes map[string]*service.Assessment `json:"outcomes"`
}

// HistoryParams defines parameters for the prediction_history tool
type HistoryParams struct {
	PatientID string `json:"patient_id,omitempty"`
	Model     string `json:"model,omitempty"`
	Label     string `json:"label,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// HistoryResult is the prediction_history output
type HistoryResult struct {
	Predictions []*domain.Prediction `json:"predictions"`
	Total       int                  `json:"total"`
}

// ExportParams defines parameters for the export_predictions tool.
// PatientID narrows XLSX exports only; JSON exports are full backups.
type ExportParams struct {
	Format    string `json:"format,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

// ExportResult is the export_predictions output
type ExportResult struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

func (s *Server) handleScoreDiabetes(ctx context.Context, req *mcp.CallToolRequest, params ScoreParams) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, "score_diabetes", params, s.scorer.ScoreDiabetes)
}

func (s *Server) handleScoreCVD(ctx context.Context, req *mcp.CallToolRequest, params ScoreParams) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, "score_cvd", params, s.scorer.ScoreCVD)
}

type scoreFunc func(ctx context.Context, req domain.ScoreRequest) *service.Assessment

func (s *Server) score(ctx context.Context, tool string, params ScoreParams, fn scoreFunc) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", tool).Info("Tool invoked")

	if len(params.Payload) == 0 {
		return errorResult("Missing required parameter", fmt.Errorf("payload is required")), nil, nil
	}

	a := fn(ctx, domain.ScoreRequest{
		Payload:   framingham.Payload(params.Payload),
		PatientID: params.PatientID,
		TestID:    params.TestID,
	})

	// Missing fields and out of range values are reported in the outcome, not as tool errors
	result, err := jsonResult(a)
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

func (s *Server) handleAssessPriority(ctx context.Context, req *mcp.CallToolRequest, params PriorityParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assess_priority").Info("Tool invoked")

	if params.Diabetes == nil && params.CVD == nil {
		return errorResult("Missing required parameter", fmt.Errorf("at least one of diabetes or cvd is required")), nil, nil
	}

	out := PriorityResult{Outcomes: make(map[string]*service.Assessment, 2)}
	var diabetes, cvd *framingham.RiskResult
	if params.Diabetes != nil {
		a := s.scorer.ScoreDiabetes(ctx, domain.ScoreRequest{Payload: params.Diabetes})
		out.Outcomes["diabetes"] = a
		diabetes = a.Result
	}
	if params.CVD != nil {
		a := s.scorer.ScoreCVD(ctx, domain.ScoreRequest{Payload: params.CVD})
		out.Outcomes["cvd"] = a
		cvd = a.Result
	}
	out.PriorityAssessment = s.scorer.AssessPriority(diabetes, cvd)

	result, err := jsonResult(out)
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

func (s *Server) handlePredictionHistory(ctx context.Context, req *mcp.CallToolRequest, params HistoryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "prediction_history").Info("Tool invoked")

	limit := params.Limit
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	filter := domain.PredictionFilter{
		PatientID: params.PatientID,
		Model:     params.Model,
		Label:     params.Label,
		Limit:     limit,
	}

	preds, err := s.history.List(ctx, filter)
	if err != nil {
		return errorResult("Failed to list predictions", err), nil, nil
	}
	total, err := s.history.Count(ctx, filter)
	if err != nil {
		return errorResult("Failed to count predictions", err), nil, nil
	}
	if preds == nil {
		preds = []*domain.Prediction{}
	}

	result, err := jsonResult(HistoryResult{Predictions: preds, Total: total})
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

func (s *Server) handleExportPredictions(ctx context.Context, req *mcp.CallToolRequest, params ExportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_predictions").Info("Tool invoked")

	format := params.Format
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "json" {
		return errorResult("Invalid parameter", fmt.Errorf("format must be xlsx or json, got %q", format)), nil, nil
	}
	if s.exportDir == "" {
		return errorResult("Export is not configured", nil), nil, nil
	}
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return errorResult("Failed to create export directory", err), nil, nil
	}

	path := filepath.Join(s.exportDir, fmt.Sprintf("predictions-%s.%s", time.Now().UTC().Format("20060102-150405"), format))
	f, err := os.Create(path)
	if err != nil {
		return errorResult("Failed to create export file", err), nil, nil
	}
	defer f.Close()

	if format == "json" {
		err = s.history.ExportJSON(ctx, f)
	} else {
		err = s.history.ExportXLSX(ctx, f, domain.PredictionFilter{PatientID: params.PatientID})
	}
	if err != nil {
		os.Remove(path)
		return errorResult("Failed to export predictions", err), nil, nil
	}

	s.logger.WithField("path", path).Info("Predictions exported")
	result, err := jsonResult(ExportResult{Path: path, Format: format})
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}
