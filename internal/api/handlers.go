package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/middleware"
	"github.com/framingham-risk-server/internal/service"
	"github.com/framingham-risk-server/pkg/framingham"
)

// maxListLimit caps a single history page
const maxListLimit = 500

func (s *Server) handlePredictDiabetes(c *gin.Context) {
	s.handlePredict(c, diabetesRoute, s.scorer.ScoreDiabetes)
}

func (s *Server) handlePredictHeart(c *gin.Context) {
	s.handlePredict(c, cvdRoute, s.scorer.ScoreCVD)
}

type scoreFunc func(ctx context.Context, req domain.ScoreRequest) *service.Assessment

func (s *Server) handlePredict(c *gin.Context, route routeInfo, score scoreFunc) {
	c.Set(failureMessageKey, route.failure)

	var body framingham.Payload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "Invalid input data",
			Code:    domain.ErrInvalidInput,
			Details: err.Error(),
		})
		return
	}

	a := score(c.Request.Context(), s.scoreRequest(c, body))
	switch a.Kind {
	case framingham.OutcomeMissingFields:
		c.JSON(http.StatusBadRequest, newMissingFieldsResponse(route, a))
	case framingham.OutcomeInvalidInput:
		c.JSON(http.StatusBadRequest, newInvalidInputResponse(a))
	default:
		c.JSON(http.StatusOK, newPredictionResponse(route, body, a))
	}
}

type priorityRequest struct {
	Diabetes framingham.Payload `json:"diabetes"`
	CVD      framingham.Payload `json:"cvd"`
}

// handlePriority scores whichever payloads are present and applies the high-risk rule
func (s *Server) handlePriority(c *gin.Context) {
	c.Set(failureMessageKey, "Failed to assess priority")

	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "Invalid input data",
			Code:    domain.ErrInvalidInput,
			Details: err.Error(),
		})
		return
	}
	if req.Diabetes == nil && req.CVD == nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "Invalid input data",
			Code:    domain.ErrInvalidInput,
			Details: "at least one of diabetes or cvd is required",
		})
		return
	}

	ctx := c.Request.Context()
	resp := priorityResponse{Outcomes: make(map[string]*service.Assessment, 2)}
	var diabetes, cvd *framingham.RiskResult
	if req.Diabetes != nil {
		a := s.scorer.ScoreDiabetes(ctx, s.scoreRequest(c, req.Diabetes))
		resp.Outcomes["diabetes"] = a
		diabetes = a.Result
	}
	if req.CVD != nil {
		a := s.scorer.ScoreCVD(ctx, s.scoreRequest(c, req.CVD))
		resp.Outcomes["cvd"] = a
		cvd = a.Result
	}

	resp.PriorityAssessment = s.scorer.AssessPriority(diabetes, cvd)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) scoreRequest(c *gin.Context, body framingham.Payload) domain.ScoreRequest {
	req := domain.ScoreRequest{
		Payload:   body,
		PatientID: c.GetHeader("X-Patient-ID"),
		RequestID: c.GetString(middleware.CorrelationIDKey),
	}
	if id, ok := body["patientId"].(string); ok && id != "" {
		req.PatientID = id
	}
	if id := body["testId"]; id != nil {
		req.TestID = fmt.Sprint(id)
	}
	return req
}

func (s *Server) handleGetPrediction(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	pred, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, s.apiError(c, domain.ErrNotFoundCode, "Prediction not found", ""))
		return
	}
	if err != nil {
		s.historyFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

func (s *Server) handleListPredictions(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	filter, ok := s.parseFilter(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	preds, err := s.history.List(ctx, filter)
	if err != nil {
		s.historyFailure(c, err)
		return
	}
	total, err := s.history.Count(ctx, filter)
	if err != nil {
		s.historyFailure(c, err)
		return
	}
	if preds == nil {
		preds = []*domain.Prediction{}
	}
	c.JSON(http.StatusOK, listResponse{
		Predictions: preds,
		Total:       total,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

func (s *Server) handleExportPredictions(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	filter, ok := s.parseFilter(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("predictions-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := s.history.ExportXLSX(c.Request.Context(), c.Writer, filter); err != nil {
		s.historyFailure(c, err)
	}
}

func (s *Server) parseFilter(c *gin.Context) (domain.PredictionFilter, bool) {
	filter := domain.PredictionFilter{
		PatientID: c.Query("patient_id"),
		Model:     c.Query("model"),
		Label:     c.Query("label"),
		Limit:     100,
	}

	invalid := func(field, value, msg string) (domain.PredictionFilter, bool) {
		verr := &domain.ValidationError{Field: field, Message: msg, Value: value}
		c.JSON(http.StatusBadRequest, s.apiError(c, domain.ErrInvalidInput, "Invalid query parameter", verr.Error()))
		return filter, false
	}

	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return invalid("since", v, "must be an RFC3339 timestamp")
		}
		filter.Since = since
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return invalid("limit", v, fmt.Sprintf("must be an integer between 1 and %d", maxListLimit))
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return invalid("offset", v, "must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, true
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history != nil {
		return true
	}
	c.JSON(http.StatusNotFound, s.apiError(c, domain.ErrNotFoundCode, "Prediction history is disabled", ""))
	return false
}

func (s *Server) historyFailure(c *gin.Context, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"path":           c.FullPath(),
	}).Error("History query failed")
	c.JSON(http.StatusInternalServerError, s.apiError(c, domain.ErrDatabaseError, "Failed to read prediction history", ""))
}

func (s *Server) apiError(c *gin.Context, code, message, details string) *domain.APIError {
	return domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey))
}
