package mcp

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/config"
	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/history"
	"github.com/framingham-risk-server/internal/service"
)

// LiteServer is a standalone MCP server that requires no external services.
// Predictions are recorded in SQLite under the data directory.
type LiteServer struct {
	config *config.LiteConfig
	server *Server
	scorer *service.ScoringService
	store  history.Store
	logger *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithHistoryStore sets a custom history store.
func WithHistoryStore(store history.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *config.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	if cfg.Transport != "stdio" {
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}

	s := &LiteServer{
		config: cfg,
		logger: config.NewLogger(domain.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	scorerOpts := []service.Option{}
	serverOpts := []Option{WithExportDir(cfg.ExportDir())}
	if cfg.HistoryEnabled {
		if s.store == nil {
			store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
			if err != nil {
				return nil, fmt.Errorf("failed to create history store: %w", err)
			}
			s.store = store
		}
		scorerOpts = append(scorerOpts, service.WithRecorder(s.store))
		serverOpts = append(serverOpts, WithHistory(s.store, cfg.HistoryLimit))
	}

	s.scorer = service.NewScoringService(s.logger, scorerOpts...)
	s.server = NewServer(domain.MCPConfig{
		ServerName:    "framingham-risk-server-lite",
		ServerVersion: "v1.0.0",
		TransportType: cfg.Transport,
	}, s.scorer, s.logger, serverOpts...)

	s.logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"history":  cfg.HistoryEnabled,
	}).Info("Lite server initialized successfully")
	return s, nil
}

// Start serves MCP until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	return s.server.Run(ctx)
}

// Close flushes pending recordings and closes the history store.
func (s *LiteServer) Close() error {
	s.scorer.Wait()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close history store")
			return err
		}
	}
	return nil
}

// Server returns the tool server for external access.
func (s *LiteServer) Server() *Server {
	return s.server
}

// HistoryStore returns the history store, nil when history is disabled.
func (s *LiteServer) HistoryStore() history.Store {
	return s.store
}
