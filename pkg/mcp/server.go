// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the legal review workflow as an MCP tool.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/review"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

// ReviewToolName is the name of the registered tool.
const ReviewToolName = "review_legal_document"

// Reviewer runs one legal review.
type Reviewer interface {
	Run(ctx context.Context, req review.Request) (*review.Result, error)
}

// Server wraps the mcp-go server.
type Server struct {
	mcpServer *server.MCPServer
	reviewer  Reviewer
	logger    *slog.Logger
}

// NewServer creates an MCP server with the review tool registered.
func NewServer(name, version string, reviewer Reviewer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		reviewer:  reviewer,
		logger:    telemetry.ComponentLogger(logger, "mcp"),
	}
	s.mcpServer.AddTool(ReviewTool(), s.handleReview)
	return s
}

// ReviewTool describes the review tool and its input schema.
func ReviewTool() mcp.Tool {
	return mcp.NewTool(ReviewToolName,
		mcp.WithDescription("Run a multi-agent legal review: classify clauses, assess compliance risk and "+
			"estimate legal complexity, then return a grounded summary."),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Full text of the legal document to review."),
		),
		mcp.WithString("references",
			mcp.Description("Optional reference material (laws, regulations, precedents) to ground the review."),
		),
	)
}

func (s *Server) handleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	document, _ := args["document"].(string)
	if strings.TrimSpace(document) == "" {
		return mcp.NewToolResultError("document is required"), nil
	}
	references, _ := args["references"].(string)

	res, err := s.reviewer.Run(ctx, review.Request{Document: document, References: references})
	if err != nil {
		s.logger.Warn("review tool failed", "error", err, "code", errors.CodeOf(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := json.Marshal(struct {
		ReviewID   string `json:"review_id"`
		RiskLevel  string `json:"risk_level,omitempty"`
		Complexity string `json:"complexity,omitempty"`
	}{res.ReviewID, res.RiskLevel, res.Complexity})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to encode review summary", err)
	}

	result := mcp.NewToolResultText(res.Answer)
	result.Content = append(result.Content, mcp.NewTextContent(string(summary)))
	return result, nil
}

// ServeStdio serves the tool on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
