package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

const (
	serverName    = "benefit-finder"
	serverVersion = "1.0.0"

	toolSearch = "search_benefits"
	toolGet    = "get_benefit"
)

// Tools exposes benefit search and lookup to MCP clients.
type Tools struct {
	searcher ports.BenefitSearcher
	reader   ports.BenefitReader
	logger   *slog.Logger
}

func NewTools(searcher ports.BenefitSearcher, reader ports.BenefitReader, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{searcher: searcher, reader: reader, logger: logger}
}

// NewServer registers the tools on a fresh MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(toolSearch,
		mcp.WithDescription("Find public benefits matching a natural-language question. Returns ranked benefits with provenance."),
		mcp.WithString("question", mcp.Required(), mcp.Description("What the user is looking for, in their own words")),
		mcp.WithString("user_id", mcp.Description("Optional user id whose stored profile narrows the results")),
	), tools.Search)

	s.AddTool(mcp.NewTool(toolGet,
		mcp.WithDescription("Fetch one benefit by its service id."),
		mcp.WithString("service_id", mcp.Required(), mcp.Description("Benefit service id")),
	), tools.Get)

	return s
}

func (t *Tools) Search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.searcher.Search(ctx, domain.SearchRequest{
		Question: question,
		UserID:   req.GetString("user_id", ""),
	})
	if err != nil {
		t.logger.Error("mcp_search_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (t *Tools) Get(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	serviceID, err := req.RequireString("service_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	benefit, err := t.reader.GetByServiceID(ctx, serviceID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(benefit)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
