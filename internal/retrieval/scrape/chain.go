package scrape

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

// ChainOption customises a Chain.
type ChainOption func(*Chain)

// WithChainLogger overrides the chain logger.
func WithChainLogger(logger logSDK.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithChainProgress subscribes a progress callback to scrape attempts.
func WithChainProgress(fn retrieval.ProgressFunc) ChainOption {
	return func(c *Chain) {
		c.progress = fn
	}
}

// Chain tries the reader proxy first, then the direct fetch. It implements
// retrieval.Scraper and never returns an error: exhausted stages yield a
// typed ScrapeUnavailable result the caller can branch on.
type Chain struct {
	reader   *Reader
	direct   *Direct
	logger   logSDK.Logger
	progress retrieval.ProgressFunc
}

// NewChain composes the two scrape stages.
func NewChain(reader *Reader, direct *Direct, opts ...ChainOption) (*Chain, error) {
	if reader == nil {
		return nil, errors.New("reader stage is required")
	}
	if direct == nil {
		return nil, errors.New("direct stage is required")
	}

	c := &Chain{
		reader: reader,
		direct: direct,
		logger: log.Logger.Named("scrape_chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scrape returns page text for url, or a typed failure after both stages
// are exhausted.
func (c *Chain) Scrape(ctx context.Context, url string) retrieval.ScrapeResult {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return retrieval.ScrapeResult{URL: url, FailureKind: retrieval.ErrScrapeUnavailable}
	}

	c.progress.Report(retrieval.StageScrapeAttempt, "reader_proxy "+trimmed)
	content, err := c.reader.Fetch(ctx, trimmed)
	if err == nil {
		c.logger.Debug("scrape served by reader proxy",
			zap.String("url", trimmed), zap.Int("chars", len(content)))
		return retrieval.ScrapeResult{URL: trimmed, Content: content}
	}
	c.logger.Warn("reader proxy stage failed",
		zap.String("url", trimmed), zap.Error(err))

	c.progress.Report(retrieval.StageScrapeAttempt, "direct_fetch "+trimmed)
	content, kind, err := c.direct.Fetch(ctx, trimmed)
	if err == nil && kind == retrieval.ErrNone {
		c.logger.Debug("scrape served by direct fetch",
			zap.String("url", trimmed), zap.Int("chars", len(content)))
		return retrieval.ScrapeResult{URL: trimmed, Content: content}
	}
	if err != nil {
		c.logger.Warn("direct fetch stage failed",
			zap.String("url", trimmed), zap.Error(err))
	} else {
		c.logger.Warn("direct fetch stage rejected document",
			zap.String("url", trimmed), zap.String("kind", string(kind)))
	}

	return retrieval.ScrapeResult{URL: trimmed, FailureKind: retrieval.ErrScrapeUnavailable}
}
