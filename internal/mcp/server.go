// Package mcp exposes the risk models as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/history"
	"github.com/framingham-risk-server/internal/service"
)

// Server wraps an MCP server whose tools run the scoring service
type Server struct {
	mcpServer    *mcp.Server
	scorer       *service.ScoringService
	history      history.Store
	historyLimit int
	exportDir    string
	logger       *logrus.Logger
}

// Option configures a Server
type Option func(*Server)

// WithHistory enables the history tools. limit bounds a single listing.
func WithHistory(store history.Store, limit int) Option {
	return func(s *Server) {
		s.history = store
		s.historyLimit = limit
	}
}

// WithExportDir sets where export_predictions writes its files
func WithExportDir(dir string) Option {
	return func(s *Server) { s.exportDir = dir }
}

// NewServer creates a new MCP server instance
func NewServer(cfg domain.MCPConfig, scorer *service.ScoringService, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		scorer:       scorer,
		historyLimit: history.DefaultListLimit,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}
	s.mcpServer = mcp.NewServer(serverInfo, nil)
	s.registerTools()

	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "score_diabetes",
		Description: "Estimate 8-year type 2 diabetes risk with the Framingham Offspring model. Accepts the current or the legacy payload shape.",
	}, s.handleScoreDiabetes)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "score_cvd",
		Description: "Estimate 10-year cardiovascular disease risk with the Framingham General CVD model.",
	}, s.handleScoreCVD)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assess_priority",
		Description: "Score diabetes and/or CVD payloads and report whether the patient reaches the 20% high-risk threshold.",
	}, s.handleAssessPriority)

	toolCount := 3
	if s.history != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "prediction_history",
			Description: "List recorded predictions, newest first, optionally filtered by patient, model or label.",
		}, s.handlePredictionHistory)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "export_predictions",
			Description: "Export recorded predictions to a JSON or XLSX file in the data directory.",
		}, s.handleExportPredictions)
		toolCount += 2
	}

	s.logger.WithField("tool_count", toolCount).Info("Successfully registered all tools")
}

// jsonResult renders v as indented JSON text content
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// errorResult reports a tool level failure the client can show to the user
func errorResult(message string, err error) *mcp.CallToolResult {
	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
