package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/framingham-risk-server/internal/domain"
)

// defaultSummaryWindow applies when no since parameter is given
const defaultSummaryWindow = 30 * 24 * time.Hour

func (s *Server) handleAnalyticsSummary(c *gin.Context) {
	if !s.requireAnalytics(c) {
		return
	}

	since := time.Now().UTC().Add(-defaultSummaryWindow)
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			verr := &domain.ValidationError{Field: "since", Message: "must be an RFC3339 timestamp", Value: v}
			c.JSON(http.StatusBadRequest, s.apiError(c, domain.ErrInvalidInput, "Invalid query parameter", verr.Error()))
			return
		}
		since = t
	}

	summary, err := s.analytics.Summary(c.Request.Context(), since)
	if err != nil {
		s.historyFailure(c, err)
		return
	}
	if summary == nil {
		summary = []domain.RiskSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "summary": summary})
}

func (s *Server) handleAnalyticsHighRisk(c *gin.Context) {
	if !s.requireAnalytics(c) {
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			verr := &domain.ValidationError{Field: "limit", Message: "must be a positive integer", Value: v}
			c.JSON(http.StatusBadRequest, s.apiError(c, domain.ErrInvalidInput, "Invalid query parameter", verr.Error()))
			return
		}
		limit = n
	}

	preds, err := s.analytics.HighRisk(c.Request.Context(), limit)
	if err != nil {
		s.historyFailure(c, err)
		return
	}
	if preds == nil {
		preds = []*domain.Prediction{}
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds})
}

func (s *Server) requireAnalytics(c *gin.Context) bool {
	if s.analytics != nil {
		return true
	}
	c.JSON(http.StatusNotFound, s.apiError(c, domain.ErrNotFoundCode, "Analytics require the postgres history backend", ""))
	return false
}
