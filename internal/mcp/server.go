// Package mcp exposes the retrieval facade over the MCP streamable HTTP
// transport so agent runtimes can call web_search, web_fetch and
// search_and_enrich as tools.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

// Retriever is the facade surface the MCP tools consume.
type Retriever interface {
	Search(ctx context.Context, query string) retrieval.SearchResponse
	Scrape(ctx context.Context, url string) retrieval.ScrapeResult
	SearchAndEnrich(ctx context.Context, query string, maxResults int) retrieval.SearchResponse
}

// Server wraps the MCP server state for the HTTP transport.
type Server struct {
	handler   http.Handler
	logger    logSDK.Logger
	retriever Retriever
}

// NewServer constructs a remote MCP server exposing the retrieval tools
// under a single HTTP handler.
func NewServer(retriever Retriever, logger logSDK.Logger) (*Server, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if logger == nil {
		logger = log.Logger
	}

	hooks := newMCPHooks(logger.Named("mcp_hooks"))

	mcpServer := srv.NewMCPServer(
		"psassistant-retrieval",
		"1.0.0",
		srv.WithToolCapabilities(true),
		srv.WithInstructions("Use web_search for queries, web_fetch for page content, search_and_enrich for results with scraped bodies."),
		srv.WithRecovery(),
		srv.WithHooks(hooks),
	)

	streamable := srv.NewStreamableHTTPServer(mcpServer)

	s := &Server{
		handler:   streamable,
		logger:    logger.Named("mcp"),
		retriever: retriever,
	}

	mcpServer.AddTool(webSearchTool(), s.handleWebSearch)
	mcpServer.AddTool(webFetchTool(), s.handleWebFetch)
	mcpServer.AddTool(searchAndEnrichTool(), s.handleSearchAndEnrich)

	return s, nil
}

// Handler returns the HTTP handler that should be mounted to serve MCP traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func webSearchTool() mcp.Tool {
	return mcp.NewTool(
		"web_search",
		mcp.WithDescription("Search the public web and return a structured result set."),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Plain text search query."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

func webFetchTool() mcp.Tool {
	return mcp.NewTool(
		"web_fetch",
		mcp.WithDescription("Fetch a web page and return its main content as markdown."),
		mcp.WithString(
			"url",
			mcp.Required(),
			mcp.Description("The URL to retrieve."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

func searchAndEnrichTool() mcp.Tool {
	return mcp.NewTool(
		"search_and_enrich",
		mcp.WithDescription("Search the public web, rank official sources first and attach scraped page bodies to the top results."),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Plain text search query."),
		),
		mcp.WithNumber(
			"max_results",
			mcp.Description("Maximum number of results to enrich with page content."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

func (s *Server) handleWebSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query cannot be empty"), nil
	}

	resp := s.retriever.Search(ctx, query)
	if resp.Degraded() {
		s.logger.Warn("web_search degraded", zap.String("query", query))
	}

	toolResult, err := mcp.NewToolResultJSON(resp)
	if err != nil {
		s.logger.Error("encode search result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode search result"), nil
	}
	return toolResult, nil
}

func (s *Server) handleWebFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlValue, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	urlValue = strings.TrimSpace(urlValue)
	if urlValue == "" {
		return mcp.NewToolResultError("url cannot be empty"), nil
	}

	result := s.retriever.Scrape(ctx, urlValue)
	if !result.Ok() {
		s.logger.Warn("web_fetch failed",
			zap.String("url", urlValue),
			zap.String("failure", string(result.FailureKind)))
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %s", result.FailureKind)), nil
	}

	toolResult, err := mcp.NewToolResultJSON(map[string]any{
		"url":     result.URL,
		"content": result.Content,
	})
	if err != nil {
		s.logger.Error("encode web_fetch result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode web_fetch response"), nil
	}
	return toolResult, nil
}

func (s *Server) handleSearchAndEnrich(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query cannot be empty"), nil
	}

	maxResults := 0
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if raw, ok := args["max_results"]; ok {
			if n, ok := raw.(float64); ok {
				maxResults = int(n)
			}
		}
	}

	resp := s.retriever.SearchAndEnrich(ctx, query, maxResults)

	toolResult, err := mcp.NewToolResultJSON(resp)
	if err != nil {
		s.logger.Error("encode enriched result", zap.Error(err))
		return mcp.NewToolResultError("failed to encode enriched result"), nil
	}
	return toolResult, nil
}

func newMCPHooks(logger logSDK.Logger) *srv.Hooks {
	if logger == nil {
		return nil
	}

	hooks := &srv.Hooks{}

	hooks.AddBeforeAny(func(ctx context.Context, id any, method mcp.MCPMethod, message any) {
		logger.Debug("mcp request received", hookLogFields(ctx, id, method)...)
	})

	hooks.AddOnSuccess(func(ctx context.Context, id any, method mcp.MCPMethod, message any, result any) {
		logger.Info("mcp request succeeded", hookLogFields(ctx, id, method)...)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		fields := append(hookLogFields(ctx, id, method), zap.Error(err))
		logger.Error("mcp request failed", fields...)
	})

	hooks.AddOnRegisterSession(func(ctx context.Context, session srv.ClientSession) {
		logger.Info("mcp session registered", zap.String("session_id", session.SessionID()))
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session srv.ClientSession) {
		logger.Info("mcp session unregistered", zap.String("session_id", session.SessionID()))
	})

	return hooks
}

func hookLogFields(ctx context.Context, id any, method mcp.MCPMethod) []zap.Field {
	fields := []zap.Field{
		zap.Any("request_id", id),
		zap.String("method", string(method)),
	}

	if session := srv.ClientSessionFromContext(ctx); session != nil {
		fields = append(fields, zap.String("session_id", session.SessionID()))
	}

	return fields
}
