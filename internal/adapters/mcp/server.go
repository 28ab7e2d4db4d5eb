package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

const (
	serverName           = "rx-crosscheck"
	evaluateToolName     = "evaluate_prescription"
	evaluateToolArgument = "request"
)

// Runner runs one evaluation without persisting it.
type Runner interface {
	Run(ctx context.Context, req domain.EvaluationRequest) (domain.EvaluationResult, error)
}

type Server struct {
	runner Runner
	now    func() time.Time
}

func New(runner Runner) *Server {
	return &Server{runner: runner, now: time.Now}
}

// MCPServer exposes the evaluation tool over the Model Context Protocol.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	srv.AddTool(evaluateTool(), s.handleEvaluate)
	return srv
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func evaluateTool() mcp.Tool {
	return mcp.NewTool(evaluateToolName,
		mcp.WithDescription("Review a prescription with two independent AI reviewers and reconcile their verdicts. "+
			"Returns both analyses and a comparison with needsHumanReview."),
		mcp.WithString(evaluateToolArgument,
			mcp.Required(),
			mcp.Description(`Evaluation request as JSON: {"prescription": {...}, "patient": {...}}`),
		),
	)
}

// handleEvaluate reports request and provider problems as tool errors so the
// calling model can read them.
func (s *Server) handleEvaluate(ctx context.Context, call mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := call.RequireString(evaluateToolArgument)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var req domain.EvaluationRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return mcp.NewToolResultError("request is not valid JSON: " + err.Error()), nil
	}
	if err := req.Validate(s.now().UTC()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		slog.Warn("mcp_evaluation_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}
