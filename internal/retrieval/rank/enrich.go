package rank

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	// DefaultMaxEnrich caps how many results gain a scraped body per query.
	DefaultMaxEnrich = 5

	// maxEnrichWorkers bounds concurrent scrapes so no origin or the reader
	// proxy sees a burst; interRequestPause is kept per worker on top.
	maxEnrichWorkers  = 3
	interRequestPause = 500 * time.Millisecond

	// minBodyChars is the bar for attaching a scraped body to a result.
	minBodyChars = 200
)

// EnricherOption customises an Enricher.
type EnricherOption func(*Enricher)

// WithEnricherLogger overrides the enricher logger.
func WithEnricherLogger(logger logSDK.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEnricherProgress subscribes a progress callback to per-URL checkpoints.
func WithEnricherProgress(fn retrieval.ProgressFunc) EnricherOption {
	return func(e *Enricher) {
		e.progress = fn
	}
}

// Enricher attaches scraped page bodies to ranked results.
type Enricher struct {
	scraper  retrieval.Scraper
	logger   logSDK.Logger
	progress retrieval.ProgressFunc
}

// NewEnricher constructs an Enricher over the given scrape chain.
func NewEnricher(scraper retrieval.Scraper, opts ...EnricherOption) (*Enricher, error) {
	if scraper == nil {
		return nil, errors.New("scraper is required")
	}

	e := &Enricher{
		scraper: scraper,
		logger:  log.Logger.Named("enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich ranks the results, scrapes up to maxToFetch promising candidates
// with a bounded worker pool, attaches bodies, and returns the sequence
// with official results stably partitioned to the front.
func (e *Enricher) Enrich(ctx context.Context, results []retrieval.SearchResult, maxToFetch int) []retrieval.SearchResult {
	if maxToFetch <= 0 {
		maxToFetch = DefaultMaxEnrich
	}

	ranked := Rank(results)
	targets := EnrichTargets(ranked, maxToFetch)
	if len(targets) == 0 {
		return ranked
	}

	// Workers write to disjoint indices of ranked, so no extra locking.
	jobs := make(chan int, len(targets))
	for _, idx := range targets {
		jobs <- idx
	}
	close(jobs)

	group, ctx := errgroup.WithContext(ctx)
	for worker := 0; worker < maxEnrichWorkers; worker++ {
		group.Go(func() error {
			first := true
			for idx := range jobs {
				if !first {
					// Inter-request pacing per worker keeps the total load on
					// any single origin low.
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(interRequestPause):
					}
				}
				first = false
				e.enrichOne(ctx, &ranked[idx])
			}
			return nil
		})
	}
	_ = group.Wait()

	return PartitionOfficial(ranked)
}

func (e *Enricher) enrichOne(ctx context.Context, result *retrieval.SearchResult) {
	e.progress.Report(retrieval.StageEnrichURL, result.URL)

	scraped := e.scraper.Scrape(ctx, result.URL)
	if !scraped.Ok() {
		e.logger.Debug("enrichment scrape failed",
			zap.String("url", result.URL),
			zap.String("kind", string(scraped.FailureKind)))
		return
	}
	if !usableBody(scraped.Content) {
		e.logger.Debug("enrichment scrape too thin",
			zap.String("url", result.URL),
			zap.Int("chars", len(scraped.Content)))
		return
	}

	result.BodyText = scraped.Content
	result.IsOfficial = true
	e.logger.Debug("result enriched",
		zap.String("url", result.URL),
		zap.Int("chars", len(scraped.Content)))
}

// usableBody rejects thin or error-marker content.
func usableBody(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minBodyChars {
		return false
	}
	lowered := strings.ToLower(trimmed)
	for _, marker := range []string{"search unavailable", "404 not found", "access denied", "page not found"} {
		if strings.HasPrefix(lowered, marker) || strings.HasPrefix(lowered, "["+marker) {
			return false
		}
	}
	return true
}
