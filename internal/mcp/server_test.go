package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
)

type stubRetriever struct {
	searchResp  retrieval.SearchResponse
	scrapeRes   retrieval.ScrapeResult
	enrichCalls int
	lastMax     int
}

func (s *stubRetriever) Search(_ context.Context, query string) retrieval.SearchResponse {
	resp := s.searchResp
	resp.Query = query
	return resp
}

func (s *stubRetriever) Scrape(context.Context, string) retrieval.ScrapeResult {
	return s.scrapeRes
}

func (s *stubRetriever) SearchAndEnrich(_ context.Context, query string, maxResults int) retrieval.SearchResponse {
	s.enrichCalls++
	s.lastMax = maxResults
	resp := s.searchResp
	resp.Query = query
	return resp
}

func callReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServerRequiresRetriever(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)
}

func TestHandleWebSearch(t *testing.T) {
	retriever := &stubRetriever{searchResp: retrieval.SearchResponse{
		OrganicResults: []retrieval.SearchResult{{Title: "a", URL: "https://a"}},
	}}
	server, err := NewServer(retriever, nil)
	require.NoError(t, err)

	result, err := server.handleWebSearch(context.Background(), callReq(map[string]any{"query": "eth robotics"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp retrieval.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	require.Equal(t, "eth robotics", resp.Query)
	require.Len(t, resp.OrganicResults, 1)
}

func TestHandleWebSearchEmptyQuery(t *testing.T) {
	server, err := NewServer(&stubRetriever{}, nil)
	require.NoError(t, err)

	result, err := server.handleWebSearch(context.Background(), callReq(map[string]any{"query": "   "}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, "query cannot be empty", resultText(t, result))
}

func TestHandleWebFetch(t *testing.T) {
	retriever := &stubRetriever{scrapeRes: retrieval.ScrapeResult{
		URL:     "https://a",
		Content: "page body",
	}}
	server, err := NewServer(retriever, nil)
	require.NoError(t, err)

	result, err := server.handleWebFetch(context.Background(), callReq(map[string]any{"url": "https://a"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Equal(t, "page body", payload["content"])
}

func TestHandleWebFetchFailure(t *testing.T) {
	retriever := &stubRetriever{scrapeRes: retrieval.ScrapeResult{
		URL:         "https://a",
		FailureKind: retrieval.ErrScrapeUnavailable,
	}}
	server, err := NewServer(retriever, nil)
	require.NoError(t, err)

	result, err := server.handleWebFetch(context.Background(), callReq(map[string]any{"url": "https://a"}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "scrape_unavailable")
}

func TestHandleSearchAndEnrichPassesMaxResults(t *testing.T) {
	retriever := &stubRetriever{searchResp: retrieval.SearchResponse{
		OrganicResults: []retrieval.SearchResult{{Title: "a", URL: "https://a"}},
	}}
	server, err := NewServer(retriever, nil)
	require.NoError(t, err)

	result, err := server.handleSearchAndEnrich(context.Background(), callReq(map[string]any{
		"query":       "eth robotics",
		"max_results": float64(3),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, 1, retriever.enrichCalls)
	require.Equal(t, 3, retriever.lastMax)
}
