// Package api exposes the risk models over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/middleware"
	"github.com/framingham-risk-server/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// failureMessageKey holds the route specific message rendered when a handler panics
const failureMessageKey = "failure_message"

// PredictionHistory is the read side of the audit store used by the history endpoints
type PredictionHistory interface {
	domain.PredictionReader
	ExportXLSX(ctx context.Context, w io.Writer, filter domain.PredictionFilter) error
}

// Analytics aggregates recorded predictions for the dashboard endpoints
type Analytics interface {
	Summary(ctx context.Context, since time.Time) ([]domain.RiskSummary, error)
	HighRisk(ctx context.Context, limit int) ([]*domain.Prediction, error)
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	scorer        *service.ScoringService
	history       PredictionHistory
	analytics     Analytics
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// ServerOption configures optional collaborators
type ServerOption func(*Server)

// WithAnalytics enables the /api/v1/analytics endpoints
func WithAnalytics(a Analytics) ServerOption {
	return func(s *Server) { s.analytics = a }
}

// NewServer creates a new HTTP server instance. history may be nil, in which case the
// history endpoints answer 404.
func NewServer(configManager domain.ConfigManager, scorer *service.ScoringService, history PredictionHistory, logger *logrus.Logger, opts ...ServerOption) (*Server, error) {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(gin.CustomRecovery(recoveryHandler(logger)))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		router.Use(limiter.Middleware())
	}

	server := &Server{
		configManager: configManager,
		scorer:        scorer,
		history:       history,
		logger:        logger,
		router:        router,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()

	return server, nil
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/predict-diabetes", s.handlePredictDiabetes)
		v1.POST("/predict-heart", s.handlePredictHeart)
		v1.POST("/priority", s.handlePriority)

		v1.GET("/predictions", s.handleListPredictions)
		v1.GET("/predictions/export.xlsx", s.handleExportPredictions)
		v1.GET("/predictions/:id", s.handleGetPrediction)

		v1.GET("/analytics/summary", s.handleAnalyticsSummary)
		v1.GET("/analytics/high-risk", s.handleAnalyticsHighRisk)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	cfg := s.configManager.GetConfig()
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     Version,
		"environment": cfg.Environment,
		"history":     s.history != nil,
		"analytics":   s.analytics != nil,
	})
}

func recoveryHandler(logger *logrus.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"panic":          fmt.Sprint(recovered),
		}).Error("Handler panicked")

		msg := c.GetString(failureMessageKey)
		if msg == "" {
			msg = "Failed to process request"
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:   msg,
			Details: fmt.Sprint(recovered),
		})
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, X-Request-ID, X-Patient-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
