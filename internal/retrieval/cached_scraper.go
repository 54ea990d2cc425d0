package retrieval

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/cache"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

// CachedScraper wraps a Scraper with a shared result store. Every consumer
// holding the same store sees one cache, so a URL scraped by the facade is
// not fetched again during enrichment and vice versa.
type CachedScraper struct {
	scraper Scraper
	store   cache.Store[ScrapeResult]
	logger  logSDK.Logger
}

// NewCachedScraper wraps scraper so successful results are served from and
// recorded in store.
func NewCachedScraper(scraper Scraper, store cache.Store[ScrapeResult]) (*CachedScraper, error) {
	if scraper == nil {
		return nil, errors.New("scraper is required")
	}
	if store == nil {
		return nil, errors.New("scrape store is required")
	}

	return &CachedScraper{
		scraper: scraper,
		store:   store,
		logger:  log.Logger.Named("cached_scraper"),
	}, nil
}

// Scrape consults the store before delegating. Only successful non-empty
// results are written back; failures stay retryable.
func (s *CachedScraper) Scrape(ctx context.Context, url string) ScrapeResult {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return ScrapeResult{URL: url, FailureKind: ErrScrapeUnavailable}
	}

	if cached, ok, err := s.store.Get(ctx, trimmed); err == nil && ok {
		s.logger.Debug("scrape cache hit", zap.String("url", trimmed))
		return cached
	}

	result := s.scraper.Scrape(ctx, trimmed)
	if result.Ok() {
		if err := s.store.Set(ctx, trimmed, result); err != nil {
			s.logger.Warn("scrape cache write failed", zap.Error(err))
		}
	}
	return result
}
