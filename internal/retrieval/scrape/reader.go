// Package scrape acquires page text for a URL through ordered stages: a
// reader-proxy service first, then a direct fetch run through the content
// extractor. Stage order is a cost/reliability gradient and is fixed.
package scrape

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	// DefaultReaderBase is the public reader-proxy endpoint. The proxy
	// fetches the target server-side and returns cleaned markdown.
	DefaultReaderBase = "https://r.jina.ai/"

	readerTimeout = 12 * time.Second
	// maxContentChars caps proxy bodies; anything beyond is truncated.
	maxContentChars = 30000

	truncationMarker = "\n\n[content truncated]"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// ReaderOption customises a Reader.
type ReaderOption func(*Reader)

// WithReaderHTTPClient overrides the HTTP client, primarily for testing.
func WithReaderHTTPClient(client *http.Client) ReaderOption {
	return func(r *Reader) {
		if client != nil {
			r.client = client
		}
	}
}

// WithReaderLogger overrides the reader logger.
func WithReaderLogger(logger logSDK.Logger) ReaderOption {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Reader fetches a URL through the reader-proxy service.
type Reader struct {
	base   string
	client *http.Client
	policy retrieval.RetryPolicy
	logger logSDK.Logger
}

// NewReader constructs a Reader against the given proxy base URL; an empty
// base falls back to DefaultReaderBase.
func NewReader(base string, opts ...ReaderOption) *Reader {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultReaderBase
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}

	r := &Reader{
		base:   trimmed,
		client: &http.Client{Timeout: readerTimeout},
		// One retry on top of the initial attempt keeps the stage cheap.
		policy: retrieval.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, Backoff: retrieval.FixedBackoff},
		logger: log.Logger.Named("reader_proxy"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch retrieves the cleaned text body for url. Any failure (timeout,
// non-200, empty body) after retries is returned as an error so the chain
// can fall through to the direct stage.
func (r *Reader) Fetch(ctx context.Context, url string) (string, error) {
	target := r.base + url

	var content string
	err := r.policy.Attempt(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return errors.Wrap(err, "create reader request")
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Accept", "text/markdown,text/plain,*/*;q=0.9")
		req.Header.Set("Cache-Control", "no-cache")

		startAt := time.Now()
		resp, err := r.client.Do(req)
		if err != nil {
			return errors.Wrap(err, "send reader request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4*maxContentChars))
		if err != nil {
			return errors.Wrap(err, "read reader response")
		}

		r.logger.Debug("reader proxy response",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
			zap.Duration("cost", time.Since(startAt)),
			zap.Int("attempt", attempt),
		)

		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("reader proxy returned status %d", resp.StatusCode)
		}

		text := strings.TrimSpace(string(body))
		if text == "" {
			return errors.New("reader proxy returned empty body")
		}

		content = Truncate(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// Truncate caps content at maxContentChars runes, appending a marker when
// anything was cut.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxContentChars {
		return text
	}
	return string(runes[:maxContentChars]) + truncationMarker
}
