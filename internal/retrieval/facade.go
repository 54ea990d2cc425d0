package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/cache"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

// Enricher attaches scraped bodies to ranked results. Satisfied by
// rank.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, results []SearchResult, maxToFetch int) []SearchResult
}

// FacadeOption customises a Facade.
type FacadeOption func(*Facade)

// WithFacadeLogger overrides the facade logger.
func WithFacadeLogger(logger logSDK.Logger) FacadeOption {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFacadeProgress subscribes a progress callback to facade checkpoints.
func WithFacadeProgress(fn ProgressFunc) FacadeOption {
	return func(f *Facade) {
		f.progress = fn
	}
}

// Facade is the single entry point for report-generation callers. It is
// constructed once per process and passed by reference; the caches are the
// only mutable state shared across calls.
type Facade struct {
	chain       *SearchChain
	scraper     *CachedScraper
	enricher    Enricher
	searchCache cache.Store[SearchResponse]
	logger      logSDK.Logger
	progress    ProgressFunc
}

// NewFacade wires the retrieval components together.
func NewFacade(
	chain *SearchChain,
	scraper Scraper,
	enricher Enricher,
	searchCache cache.Store[SearchResponse],
	scrapeCache cache.Store[ScrapeResult],
	opts ...FacadeOption,
) (*Facade, error) {
	if chain == nil {
		return nil, errors.New("search chain is required")
	}
	if scraper == nil {
		return nil, errors.New("scraper is required")
	}
	if enricher == nil {
		return nil, errors.New("enricher is required")
	}
	if searchCache == nil {
		return nil, errors.New("search cache is required")
	}
	if scrapeCache == nil {
		return nil, errors.New("scrape cache is required")
	}

	cached, err := NewCachedScraper(scraper, scrapeCache)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		chain:       chain,
		scraper:     cached,
		enricher:    enricher,
		searchCache: searchCache,
		logger:      log.Logger.Named("retrieval_facade"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Search resolves a query through the cache and the fallback chain. The
// response is always well-formed; degraded responses are cached never.
func (f *Facade) Search(ctx context.Context, query string) SearchResponse {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return PlaceholderResponse(trimmed)
	}

	if cached, ok, err := f.searchCache.Get(ctx, trimmed); err == nil && ok {
		f.logger.Debug("search cache hit", zap.String("query", trimmed))
		return cached
	}

	resp := f.chain.Search(ctx, AugmentQuery(trimmed))
	resp.Query = trimmed

	if !resp.Degraded() {
		if err := f.searchCache.Set(ctx, trimmed, resp); err != nil {
			f.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return resp
}

// Scrape resolves a URL through the shared scrape cache and the scrape
// fallback chain.
func (f *Facade) Scrape(ctx context.Context, url string) ScrapeResult {
	return f.scraper.Scrape(ctx, url)
}

// SearchAndEnrich searches, filters known low-quality domains (falling back
// to the unfiltered set when filtering empties it), and enriches the most
// promising results with scraped bodies.
func (f *Facade) SearchAndEnrich(ctx context.Context, query string, maxResults int) SearchResponse {
	resp := f.Search(ctx, query)
	if len(resp.OrganicResults) == 0 {
		return resp
	}

	filtered := FilterLowQuality(resp.OrganicResults)
	if len(filtered) == 0 {
		// keep the low-quality hits rather than nothing; copy so enrichment
		// cannot mutate the cached response
		filtered = append([]SearchResult(nil), resp.OrganicResults...)
	}

	resp.OrganicResults = f.enricher.Enrich(ctx, filtered, maxResults)
	return resp
}

// Research runs the standard research facets for one institution/program
// pair through search-and-enrich and merges the deduplicated results. The
// shared caches keep repeated URLs across facets to a single scrape.
func (f *Facade) Research(ctx context.Context, institution, program string, maxResults int) SearchResponse {
	subject := strings.TrimSpace(institution + " " + program)
	facets := []string{
		fmt.Sprintf("%s %s program description curriculum", institution, program),
		fmt.Sprintf("%s %s admission requirements", institution, program),
		fmt.Sprintf("%s %s research areas faculty", institution, program),
		fmt.Sprintf("%s %s career prospects alumni", institution, program),
	}

	merged := SearchResponse{Query: subject, ErrorKind: ErrSearchUnavailable}
	seen := map[string]struct{}{}

	for _, facet := range facets {
		resp := f.SearchAndEnrich(ctx, facet, maxResults)
		if !resp.Degraded() {
			merged.ErrorKind = ErrNone
		}
		if merged.KnowledgeGraphSummary == "" {
			merged.KnowledgeGraphSummary = resp.KnowledgeGraphSummary
		}
		for _, result := range resp.OrganicResults {
			key := NormalizeURL(result.URL)
			if key == "" {
				key = result.Title
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged.OrganicResults = append(merged.OrganicResults, result)
		}
	}

	if merged.Degraded() && len(merged.OrganicResults) == 0 {
		return PlaceholderResponse(subject)
	}
	return merged
}

// FilterLowQuality drops results hosted on aggregator or forum domains.
func FilterLowQuality(results []SearchResult) []SearchResult {
	kept := make([]SearchResult, 0, len(results))
	for _, result := range results {
		lowered := strings.ToLower(result.URL)
		aggregator := false
		for _, domain := range AggregatorDomains {
			if strings.Contains(lowered, domain) {
				aggregator = true
				break
			}
		}
		if !aggregator {
			kept = append(kept, result)
		}
	}
	return kept
}

// institutionMarkers recognise that a query names a concrete institution.
var institutionMarkers = []string{"university", "college", "institute", "school", "polytechnic", "academy"}

// officialQualifiers, when present, suppress augmentation.
var officialQualifiers = []string{"official", "site:", ".edu", ".ac."}

// AugmentQuery appends an official-source qualifier when the query names an
// institution and education vocabulary but lacks one, steering providers
// toward authoritative pages.
func AugmentQuery(query string) string {
	lowered := strings.ToLower(query)
	for _, qualifier := range officialQualifiers {
		if strings.Contains(lowered, qualifier) {
			return query
		}
	}
	if !ContainsAnyKeyword(lowered, institutionMarkers) {
		return query
	}
	if !ContainsAnyKeyword(lowered, EducationKeywords) {
		return query
	}

	// Program-level queries get the richer qualifier.
	if ContainsAnyKeyword(lowered, programQualifierKeywords) {
		return query + " official university information"
	}
	return query + " official site"
}

// programQualifierKeywords mark queries about a specific program rather than
// the institution as a whole.
var programQualifierKeywords = []string{
	"program", "programme", "course", "degree", "admission", "curriculum",
	"master", "msc", "phd", "bachelor", "requirements",
}
