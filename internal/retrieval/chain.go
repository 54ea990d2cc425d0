package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

// Engine is a concrete search backend. Implementations return the raw
// provider payload; the chain owns normalization so every engine stays
// shape-agnostic.
type Engine interface {
	// Name returns the unique identifier for the engine instance.
	Name() string
	// Search executes the query and returns the provider payload.
	Search(ctx context.Context, query string) (RawPayload, error)
}

// Scraper acquires page text for one URL. Satisfied by the scrape fallback
// chain; declared here so the facade and enricher depend on the capability,
// not the implementation.
type Scraper interface {
	Scrape(ctx context.Context, url string) ScrapeResult
}

// SearchChainOption customises a SearchChain during construction.
type SearchChainOption func(*SearchChain)

// WithChainLogger overrides the chain logger.
func WithChainLogger(logger logSDK.Logger) SearchChainOption {
	return func(c *SearchChain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress subscribes a progress callback to per-attempt checkpoints.
func WithProgress(fn ProgressFunc) SearchChainOption {
	return func(c *SearchChain) {
		c.progress = fn
	}
}

// SearchChain routes a query through ordered engines. Order is a deliberate
// cost/reliability gradient (tool invocation before direct HTTP) and is
// preserved exactly as configured: no shuffling, no tier balancing.
type SearchChain struct {
	engines  []Engine
	logger   logSDK.Logger
	progress ProgressFunc
}

// NewSearchChain constructs a SearchChain over the given engines, attempted
// strictly in argument order.
func NewSearchChain(engines []Engine, opts ...SearchChainOption) (*SearchChain, error) {
	filtered := make([]Engine, 0, len(engines))
	for _, engine := range engines {
		if engine != nil {
			filtered = append(filtered, engine)
		}
	}
	if len(filtered) == 0 {
		return nil, errors.New("search chain requires at least one engine")
	}

	chain := &SearchChain{
		engines: filtered,
		logger:  log.Logger.Named("search_chain"),
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain, nil
}

// Search runs the query down the engine chain and returns the first
// normalized non-empty response. When every engine fails the caller still
// receives a well-formed response carrying synthetic placeholder results
// and ErrSearchUnavailable, never an error.
func (c *SearchChain) Search(ctx context.Context, query string) SearchResponse {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return PlaceholderResponse(trimmed)
	}

	var failures []string
	for idx, engine := range c.engines {
		c.progress.Report(StageSearchAttempt, engine.Name())
		c.logger.Debug("search chain invoking engine",
			zap.String("engine", engine.Name()),
			zap.Int("position", idx),
			zap.String("query", trimmed),
		)

		payload, err := engine.Search(ctx, trimmed)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", engine.Name(), err))
			c.logger.Warn("search engine failed",
				zap.String("engine", engine.Name()),
				zap.Int("position", idx),
				zap.Error(err),
			)
			c.progress.Report(StageSearchFallback, engine.Name())
			continue
		}

		resp := Normalize(trimmed, payload)
		if len(resp.OrganicResults) == 0 {
			failures = append(failures, fmt.Sprintf("%s: empty result set", engine.Name()))
			c.logger.Warn("search engine returned no results",
				zap.String("engine", engine.Name()))
			c.progress.Report(StageSearchFallback, engine.Name())
			continue
		}

		c.logger.Info("search chain succeeded",
			zap.String("engine", engine.Name()),
			zap.Int("position", idx),
			zap.Int("results", len(resp.OrganicResults)),
		)
		return resp
	}

	c.logger.Warn("search chain exhausted all engines",
		zap.String("query", trimmed),
		zap.Strings("failures", failures),
	)
	return PlaceholderResponse(trimmed)
}

// PlaceholderResponse synthesizes a minimally useful response from the query
// terms when no provider could be reached. Downstream report generation
// always has something to format, clearly marked as non-authoritative.
func PlaceholderResponse(query string) SearchResponse {
	marker := "[search unavailable - content estimated from query terms, verify against official sources]"
	resp := SearchResponse{
		Query:     query,
		ErrorKind: ErrSearchUnavailable,
	}
	if strings.TrimSpace(query) == "" {
		return resp
	}

	terms := strings.Fields(query)
	subject := strings.Join(terms, " ")
	resp.OrganicResults = []SearchResult{
		{
			Title:     subject,
			Snippet:   marker,
			BodyText:  fmt.Sprintf("%s\n\nNo live search results are available for %q.", marker, subject),
			Synthetic: true,
		},
	}
	if len(terms) > 1 {
		resp.OrganicResults = append(resp.OrganicResults, SearchResult{
			Title:     fmt.Sprintf("%s overview", subject),
			Snippet:   marker,
			BodyText:  fmt.Sprintf("%s\n\nKey terms: %s.", marker, strings.Join(terms, ", ")),
			Synthetic: true,
		})
	}
	return resp
}
