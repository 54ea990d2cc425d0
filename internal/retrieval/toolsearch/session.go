// Package toolsearch implements the remote tool-invocation search engine,
// the first tier of the search fallback chain. A negotiated MCP session
// exposes named tools discovered by enumeration rather than a fixed API.
package toolsearch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	handshakeTimeout = 15 * time.Second

	// maxConsecutiveFailures voids an established capability and forces a
	// fresh handshake, so a tool id that broke mid-session cannot poison
	// the rest of the process.
	maxConsecutiveFailures = 3
)

// searchToolCandidates are matched exactly against enumerated tool names
// before falling back to substring matching.
var searchToolCandidates = []string{
	"web-search", "web_search", "google_search", "google-search",
	"serper-search", "serper_search", "search",
}

var searchToolSubstrings = []string{"search", "google"}

var scrapeToolCandidates = []string{
	"scrape", "web_scrape", "web-scrape", "scrape_url", "scrape-url",
	"web_fetch", "web-fetch", "fetch", "extract",
}

var scrapeToolSubstrings = []string{"scrape", "extract", "fetch"}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithHeaders adds HTTP headers (API keys) to the transport.
func WithHeaders(headers map[string]string) SessionOption {
	return func(s *Session) {
		if len(headers) > 0 {
			s.headers = headers
		}
	}
}

// WithSessionLogger overrides the session logger.
func WithSessionLogger(logger logSDK.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress subscribes a progress callback to handshake checkpoints.
func WithProgress(fn retrieval.ProgressFunc) SessionOption {
	return func(s *Session) {
		s.progress = fn
	}
}

// Session owns the tool-invocation connection and its negotiated
// capability. The capability is process-scoped and reused across searches,
// but a failure streak voids it so the next call re-negotiates.
type Session struct {
	serverURL string
	headers   map[string]string

	mu         sync.Mutex
	client     *mcpclient.Client
	capability *retrieval.ToolCapability
	failures   int

	connectPolicy retrieval.RetryPolicy
	logger        logSDK.Logger
	progress      retrieval.ProgressFunc
}

// NewSession constructs a Session for the given MCP server URL.
func NewSession(serverURL string, opts ...SessionOption) (*Session, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		return nil, errors.New("tool server url is required")
	}

	s := &Session{
		serverURL: trimmed,
		// 5 connection attempts with pauses of 0.5+0.5*attempt seconds
		// in between.
		connectPolicy: retrieval.RetryPolicy{
			MaxAttempts: 5,
			BaseDelay:   500 * time.Millisecond,
			Backoff:     retrieval.LinearBackoff,
		},
		logger: log.Logger.Named("tool_session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Capability returns the negotiated capability, performing the handshake
// when none is established. Handshake failure is surfaced as an error so
// the chain can fall through; it never panics or blocks unbounded.
func (s *Session) Capability(ctx context.Context) (*retrieval.ToolCapability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capability != nil {
		return s.capability, nil
	}

	s.progress.Report(retrieval.StageHandshakeStart, s.serverURL)
	err := s.connectPolicy.Attempt(ctx, func(ctx context.Context, attempt int) error {
		s.logger.Debug("tool capability handshake",
			zap.Int("attempt", attempt), zap.String("server", s.serverURL))
		return s.handshakeLocked(ctx)
	})
	if err != nil {
		s.progress.Report(retrieval.StageHandshakeDone, "failed")
		return nil, errors.Wrap(err, "establish tool capability")
	}

	s.progress.Report(retrieval.StageHandshakeDone, s.capability.SearchToolID)
	return s.capability, nil
}

// handshakeLocked connects, initializes and enumerates tools. Caller holds
// the mutex.
func (s *Session) handshakeLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	s.closeLocked()

	var opts []transport.StreamableHTTPCOption
	if len(s.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(s.headers))
	}
	client, err := mcpclient.NewStreamableHttpClient(s.serverURL, opts...)
	if err != nil {
		return errors.Wrap(err, "create tool client")
	}
	if err := client.Start(ctx); err != nil {
		return errors.Wrap(err, "start tool transport")
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "psassistant-retrieval",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return errors.Wrap(err, "initialize tool session")
	}

	toolsResult, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		client.Close()
		return errors.Wrap(err, "enumerate tools")
	}

	names := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		names = append(names, tool.Name)
	}

	capability := &retrieval.ToolCapability{
		SearchToolID: pickTool(names, searchToolCandidates, searchToolSubstrings),
		ScrapeToolID: pickTool(names, scrapeToolCandidates, scrapeToolSubstrings),
		AllToolIDs:   names,
	}
	if !capability.HasSearch() {
		client.Close()
		return errors.Errorf("no search-capable tool among %v", names)
	}

	s.client = client
	s.capability = capability
	s.failures = 0
	s.logger.Info("tool capability established",
		zap.String("search_tool", capability.SearchToolID),
		zap.String("scrape_tool", capability.ScrapeToolID),
		zap.Strings("tools", names),
	)
	return nil
}

// CallTool invokes toolID with args and returns the decoded result payload.
func (s *Session) CallTool(ctx context.Context, toolID string, args map[string]any) (any, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return nil, errors.New("tool session is not established")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolID
	req.Params.Arguments = args

	result, err := client.CallTool(ctx, req)
	if err != nil {
		s.recordFailure()
		return nil, errors.Wrapf(err, "call tool %q", toolID)
	}
	if result.IsError {
		s.recordFailure()
		return nil, errors.Errorf("tool %q reported error: %s", toolID, resultText(result))
	}

	s.recordSuccess()
	return decodeResult(result), nil
}

// recordFailure counts a consecutive invocation failure. Crossing the
// threshold drops the capability so the next search re-negotiates instead
// of leaning on a broken tool id forever.
func (s *Session) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	if s.failures >= maxConsecutiveFailures && s.capability != nil {
		s.logger.Warn("tool capability voided after repeated failures",
			zap.Int("failures", s.failures))
		s.capability = nil
		s.failures = 0
		s.closeLocked()
	}
}

func (s *Session) recordSuccess() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}

// Close tears down the transport.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capability = nil
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// pickTool matches enumerated names against exact candidates first, then by
// substring.
func pickTool(names, candidates, substrings []string) string {
	for _, candidate := range candidates {
		for _, name := range names {
			if strings.EqualFold(name, candidate) {
				return name
			}
		}
	}
	for _, name := range names {
		lowered := strings.ToLower(name)
		for _, fragment := range substrings {
			if strings.Contains(lowered, fragment) {
				return name
			}
		}
	}
	return ""
}

// resultText flattens a tool result's text content for diagnostics.
func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, " ")
}

// decodeResult extracts the payload from a tool result: a string, a dict
// with content/text keys, or an arbitrary structure left for generic
// formatting downstream.
func decodeResult(result *mcp.CallToolResult) any {
	if text := resultText(result); text != "" {
		return text
	}
	if result.StructuredContent != nil {
		if m, ok := result.StructuredContent.(map[string]any); ok {
			if inner, ok := m["content"]; ok {
				return inner
			}
			if inner, ok := m["text"]; ok {
				return inner
			}
			return m
		}
		return result.StructuredContent
	}
	return nil
}
