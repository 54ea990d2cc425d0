package toolsearch

import (
	"context"
	"net/http/httptest"
	"testing"

	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
)

// newToolServer serves an in-process MCP endpoint exposing the given tools.
func newToolServer(t *testing.T, tools map[string]srv.ToolHandlerFunc) *httptest.Server {
	t.Helper()

	mcpServer := srv.NewMCPServer("test-tools", "0.0.1", srv.WithToolCapabilities(true))
	for name, handler := range tools {
		mcpServer.AddTool(mcp.NewTool(
			name,
			mcp.WithDescription("test tool"),
			mcp.WithString("q", mcp.Description("query")),
		), handler)
	}

	server := httptest.NewServer(srv.NewStreamableHTTPServer(mcpServer))
	t.Cleanup(server.Close)
	return server
}

func searchResultJSON() string {
	return `{"organic":[{"title":"MSc Robotics","link":"https://ethz.ch/robotics","snippet":"program"}]}`
}

func TestSessionCapabilityDiscoversTools(t *testing.T) {
	t.Parallel()

	server := newToolServer(t, map[string]srv.ToolHandlerFunc{
		"web_search": func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(searchResultJSON()), nil
		},
		"web_fetch": func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("content"), nil
		},
	})

	session, err := NewSession(server.URL)
	require.NoError(t, err)
	defer session.Close()

	capability, err := session.Capability(context.Background())
	require.NoError(t, err)
	require.Equal(t, "web_search", capability.SearchToolID)
	require.Equal(t, "web_fetch", capability.ScrapeToolID)
	require.Len(t, capability.AllToolIDs, 2)
}

func TestEngineSearchThroughSession(t *testing.T) {
	t.Parallel()

	server := newToolServer(t, map[string]srv.ToolHandlerFunc{
		"web_search": func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(searchResultJSON()), nil
		},
	})

	session, err := NewSession(server.URL)
	require.NoError(t, err)
	defer session.Close()

	engine, err := NewEngine(session)
	require.NoError(t, err)
	require.Equal(t, "tool_invocation", engine.Name())

	payload, err := engine.Search(context.Background(), "eth robotics")
	require.NoError(t, err)

	// the tool returns serialized JSON; normalization decodes it
	resp := retrieval.Normalize("eth robotics", payload)
	require.Len(t, resp.OrganicResults, 1)
	require.Equal(t, "https://ethz.ch/robotics", resp.OrganicResults[0].URL)
}

func TestSessionVoidsCapabilityAfterFailureStreak(t *testing.T) {
	t.Parallel()

	server := newToolServer(t, map[string]srv.ToolHandlerFunc{
		"web_search": func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("upstream quota exceeded"), nil
		},
	})

	session, err := NewSession(server.URL)
	require.NoError(t, err)
	defer session.Close()

	ctx := context.Background()
	capability, err := session.Capability(ctx)
	require.NoError(t, err)

	for i := 0; i < maxConsecutiveFailures; i++ {
		_, err := session.CallTool(ctx, capability.SearchToolID, map[string]any{"q": "x"})
		require.Error(t, err)
	}

	// the streak tore the session down; the next call has no client
	_, err = session.CallTool(ctx, capability.SearchToolID, map[string]any{"q": "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not established")

	// a fresh Capability call re-negotiates
	capability, err = session.Capability(ctx)
	require.NoError(t, err)
	require.Equal(t, "web_search", capability.SearchToolID)
}

func TestNewSessionRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewSession("   ")
	require.Error(t, err)
}

func TestPickTool(t *testing.T) {
	t.Parallel()

	// exact candidate wins over substring order
	names := []string{"brave_google_helper", "web-search", "calculator"}
	require.Equal(t, "web-search", pickTool(names, searchToolCandidates, searchToolSubstrings))

	// substring fallback
	names = []string{"run_brave_searcher"}
	require.Equal(t, "run_brave_searcher", pickTool(names, searchToolCandidates, searchToolSubstrings))

	require.Empty(t, pickTool([]string{"calculator"}, searchToolCandidates, searchToolSubstrings))
}

func TestIsMissingParam(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingParam(errorf("required parameter q is missing")))
	require.True(t, isMissingParam(errorf("unexpected argument numResults")))
	require.False(t, isMissingParam(errorf("upstream quota exceeded")))
	require.False(t, isMissingParam(nil))
}

func errorf(msg string) error {
	return &toolError{msg: msg}
}

type toolError struct{ msg string }

func (e *toolError) Error() string { return e.msg }
