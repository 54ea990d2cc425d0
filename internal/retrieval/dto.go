// Package retrieval implements the resilient multi-source web retrieval
// core: a tiered search fallback chain, a scrape fallback chain, content
// extraction, official-source ranking, and a cached facade consumed by the
// report generation callers.
package retrieval

import (
	"net/url"
	"strings"
)

// ErrorKind classifies a failed retrieval stage so callers can branch on
// the condition without unwinding an error chain.
type ErrorKind string

const (
	// ErrNone marks a healthy result.
	ErrNone ErrorKind = ""
	// ErrHandshakeFailure means the tool-invocation capability could not be
	// established. Non-fatal, the chain falls through to the next engine.
	ErrHandshakeFailure ErrorKind = "handshake_failure"
	// ErrToolInvocation means a remote tool call failed or timed out.
	ErrToolInvocation ErrorKind = "tool_invocation_error"
	// ErrTransport is a network-level failure on a direct HTTP request.
	ErrTransport ErrorKind = "transport_error"
	// ErrHTTPStatus is a non-2xx response from an upstream server.
	ErrHTTPStatus ErrorKind = "http_status_error"
	// ErrUnsupportedContentType means a scrape target did not serve HTML.
	ErrUnsupportedContentType ErrorKind = "unsupported_content_type"
	// ErrParse means the fetched document could not be parsed.
	ErrParse ErrorKind = "parse_error"
	// ErrSearchUnavailable means every search strategy was exhausted.
	ErrSearchUnavailable ErrorKind = "search_unavailable"
	// ErrScrapeUnavailable means every scrape strategy was exhausted.
	ErrScrapeUnavailable ErrorKind = "scrape_unavailable"
)

// SearchResult is one organic hit. Identity is the normalized URL; BodyText
// and the derived score fields are attached later by enrichment and ranking.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	BodyText      string `json:"body_text,omitempty"`
	OfficialScore int    `json:"official_score,omitempty"`
	IsOfficial    bool   `json:"is_official,omitempty"`
	// Synthetic marks placeholder results generated when every search
	// strategy failed. Callers must surface these as non-authoritative.
	Synthetic bool `json:"synthetic,omitempty"`
}

// SearchResponse is the normalized envelope returned by every search path.
// Order of OrganicResults is significant and reflects the decided ranking.
// When ErrorKind is set the response is degraded, not absent.
type SearchResponse struct {
	Query                 string         `json:"query"`
	OrganicResults        []SearchResult `json:"organic_results"`
	KnowledgeGraphSummary string         `json:"knowledge_graph_summary,omitempty"`
	ErrorKind             ErrorKind      `json:"error_kind,omitempty"`
}

// Degraded reports whether the response came from an exhausted fallback
// chain rather than a live search provider.
func (r *SearchResponse) Degraded() bool {
	return r != nil && r.ErrorKind != ErrNone
}

// ScrapeResult is the outcome of one scrape attempt chain.
type ScrapeResult struct {
	URL         string    `json:"url"`
	Content     string    `json:"content,omitempty"`
	FailureKind ErrorKind `json:"failure_kind,omitempty"`
}

// Ok reports whether usable content was captured.
func (r *ScrapeResult) Ok() bool {
	return r != nil && r.FailureKind == ErrNone && strings.TrimSpace(r.Content) != ""
}

// ToolCapability describes what a remote tool-invocation session exposes
// after a successful handshake. It is session-scoped and discarded on
// reconnect.
type ToolCapability struct {
	SearchToolID string
	ScrapeToolID string
	AllToolIDs   []string
}

// HasSearch reports whether a search-capable tool was discovered.
func (c *ToolCapability) HasSearch() bool {
	return c != nil && c.SearchToolID != ""
}

// HasScrape reports whether a scrape-capable tool was discovered.
func (c *ToolCapability) HasScrape() bool {
	return c != nil && c.ScrapeToolID != ""
}

// NormalizeQuery collapses equivalent queries onto one cache key.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// NormalizeURL collapses equivalent URLs onto one cache key. Scheme and host
// casing are insignificant, trailing slashes and fragments are dropped.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimRight(trimmed, "/"))
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}
