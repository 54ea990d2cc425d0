package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/cache"
)

type stubScraper struct {
	calls   int
	content string
	fail    bool
}

func (s *stubScraper) Scrape(_ context.Context, url string) ScrapeResult {
	s.calls++
	if s.fail {
		return ScrapeResult{URL: url, FailureKind: ErrScrapeUnavailable}
	}
	return ScrapeResult{URL: url, Content: s.content}
}

type stubEnricher struct {
	calls    int
	received []SearchResult
}

func (e *stubEnricher) Enrich(_ context.Context, results []SearchResult, _ int) []SearchResult {
	e.calls++
	e.received = results
	enriched := make([]SearchResult, len(results))
	copy(enriched, results)
	for i := range enriched {
		enriched[i].BodyText = "enriched"
	}
	return enriched
}

func newTestFacade(t *testing.T, engine Engine, scraper Scraper, enricher Enricher) *Facade {
	t.Helper()

	chain, err := NewSearchChain([]Engine{engine})
	require.NoError(t, err)

	searchCache, err := cache.NewMemory[SearchResponse](16, NormalizeQuery)
	require.NoError(t, err)
	scrapeCache, err := cache.NewMemory[ScrapeResult](16, NormalizeURL)
	require.NoError(t, err)

	facade, err := NewFacade(chain, scraper, enricher, searchCache, scrapeCache)
	require.NoError(t, err)
	return facade
}

func TestFacadeSearchCachesSuccesses(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: organicPayload("a", "https://a")}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, &stubEnricher{})

	ctx := context.Background()
	first := facade.Search(ctx, "ETH Zurich Robotics")
	require.False(t, first.Degraded())
	require.Equal(t, 1, engine.calls)

	// equivalent query spelling hits the cache
	second := facade.Search(ctx, "  eth   zurich robotics ")
	require.Equal(t, first.OrganicResults, second.OrganicResults)
	require.Equal(t, 1, engine.calls)
}

func TestFacadeSearchSkipsCachingDegraded(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: DetectPayload(map[string]any{"organic": []any{}})}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, &stubEnricher{})

	ctx := context.Background()
	first := facade.Search(ctx, "query terms")
	require.True(t, first.Degraded())
	require.Equal(t, 1, engine.calls)

	facade.Search(ctx, "query terms")
	require.Equal(t, 2, engine.calls)
}

func TestFacadeSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: organicPayload("a", "https://a")}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, &stubEnricher{})

	resp := facade.Search(context.Background(), "   ")
	require.True(t, resp.Degraded())
	require.Zero(t, engine.calls)
}

func TestFacadeScrapeCachesSuccesses(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{content: "page body"}
	engine := &stubEngine{name: "stub", payload: organicPayload("a", "https://a")}
	facade := newTestFacade(t, engine, scraper, &stubEnricher{})

	ctx := context.Background()
	first := facade.Scrape(ctx, "https://ethz.ch/robotics")
	require.True(t, first.Ok())
	require.Equal(t, 1, scraper.calls)

	// trailing slash variant hits the cache
	facade.Scrape(ctx, "https://ethz.ch/robotics/")
	require.Equal(t, 1, scraper.calls)
}

func TestFacadeScrapeSkipsCachingFailures(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{fail: true}
	engine := &stubEngine{name: "stub", payload: organicPayload("a", "https://a")}
	facade := newTestFacade(t, engine, scraper, &stubEnricher{})

	ctx := context.Background()
	result := facade.Scrape(ctx, "https://example.com")
	require.False(t, result.Ok())
	require.Equal(t, 1, scraper.calls)

	facade.Scrape(ctx, "https://example.com")
	require.Equal(t, 2, scraper.calls)
}

func TestCachedScraperReusesResults(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{content: "page body"}
	store, err := cache.NewMemory[ScrapeResult](16, NormalizeURL)
	require.NoError(t, err)
	cached, err := NewCachedScraper(scraper, store)
	require.NoError(t, err)

	ctx := context.Background()
	first := cached.Scrape(ctx, "https://ethz.ch/robotics")
	require.True(t, first.Ok())
	require.Equal(t, 1, scraper.calls)

	// trailing slash variant hits the shared store
	cached.Scrape(ctx, "https://ethz.ch/robotics/")
	require.Equal(t, 1, scraper.calls)
}

func TestCachedScraperSkipsCachingFailures(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{fail: true}
	store, err := cache.NewMemory[ScrapeResult](16, NormalizeURL)
	require.NoError(t, err)
	cached, err := NewCachedScraper(scraper, store)
	require.NoError(t, err)

	ctx := context.Background()
	cached.Scrape(ctx, "https://example.com")
	cached.Scrape(ctx, "https://example.com")
	require.Equal(t, 2, scraper.calls)
}

func TestCachedScraperValidation(t *testing.T) {
	t.Parallel()

	store, err := cache.NewMemory[ScrapeResult](16, NormalizeURL)
	require.NoError(t, err)

	_, err = NewCachedScraper(nil, store)
	require.Error(t, err)
	_, err = NewCachedScraper(&stubScraper{}, nil)
	require.Error(t, err)
}

func TestFacadeSearchAndEnrichFiltersAggregators(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: DetectPayload(map[string]any{
		"organic": []any{
			map[string]any{"title": "official", "link": "https://ethz.ch/robotics"},
			map[string]any{"title": "forum", "link": "https://reddit.com/r/gradadmissions"},
		},
	})}
	enricher := &stubEnricher{}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, enricher)

	resp := facade.SearchAndEnrich(context.Background(), "eth robotics", 3)
	require.Equal(t, 1, enricher.calls)
	require.Len(t, enricher.received, 1)
	require.Equal(t, "https://ethz.ch/robotics", enricher.received[0].URL)
	require.Equal(t, "enriched", resp.OrganicResults[0].BodyText)
}

func TestFacadeSearchAndEnrichKeepsAllWhenFilterEmpties(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: DetectPayload(map[string]any{
		"organic": []any{
			map[string]any{"title": "forum", "link": "https://reddit.com/r/a"},
			map[string]any{"title": "qa", "link": "https://quora.com/q"},
		},
	})}
	enricher := &stubEnricher{}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, enricher)

	facade.SearchAndEnrich(context.Background(), "eth robotics", 3)
	require.Len(t, enricher.received, 2)
}

func TestFacadeResearchMergesFacets(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: DetectPayload(map[string]any{
		"organic": []any{
			map[string]any{"title": "a", "link": "https://ethz.ch/robotics"},
			map[string]any{"title": "b", "link": "https://ethz.ch/apply"},
		},
	})}
	enricher := &stubEnricher{}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, enricher)

	resp := facade.Research(context.Background(), "ETH Zurich", "Robotics", 3)
	require.False(t, resp.Degraded())
	require.Equal(t, 4, engine.calls)
	// every facet goes through search-and-enrich
	require.Equal(t, 4, enricher.calls)
	// identical URLs across facets collapse to one entry each
	require.Len(t, resp.OrganicResults, 2)
}

func TestFacadeResearchPlaceholderWhenAllFacetsFail(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{name: "stub", payload: DetectPayload(map[string]any{"organic": []any{}})}
	facade := newTestFacade(t, engine, &stubScraper{content: "body"}, &stubEnricher{})

	resp := facade.Research(context.Background(), "ETH Zurich", "Robotics", 3)
	require.True(t, resp.Degraded())
	require.NotEmpty(t, resp.OrganicResults)
	require.True(t, resp.OrganicResults[0].Synthetic)
}

func TestAugmentQuery(t *testing.T) {
	t.Parallel()

	// institution plus program vocabulary gets the richer qualifier
	require.Equal(t,
		"Stanford University MSc admission official university information",
		AugmentQuery("Stanford University MSc admission"))

	// institution without program vocabulary gets the short qualifier
	require.Equal(t,
		"Stanford University department official site",
		AugmentQuery("Stanford University department"))

	// already qualified queries stay untouched
	require.Equal(t,
		"Stanford University official admission",
		AugmentQuery("Stanford University official admission"))
	require.Equal(t,
		"robotics site:ethz.ch",
		AugmentQuery("robotics site:ethz.ch"))

	// no recognizable institution, no augmentation
	require.Equal(t, "best pizza recipe", AugmentQuery("best pizza recipe"))
}

func TestFilterLowQuality(t *testing.T) {
	t.Parallel()

	results := []SearchResult{
		{URL: "https://ethz.ch/robotics"},
		{URL: "https://www.reddit.com/r/gradadmissions"},
		{URL: "https://www.topuniversities.com/rankings"},
	}
	kept := FilterLowQuality(results)
	require.Len(t, kept, 1)
	require.Equal(t, "https://ethz.ch/robotics", kept[0].URL)
}
