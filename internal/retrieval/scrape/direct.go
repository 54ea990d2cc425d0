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
	"golang.org/x/net/html/charset"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	directTimeout = 20 * time.Second
	// maxDirectBodyBytes bounds how much of an origin response is read.
	maxDirectBodyBytes = 2 << 20
)

// Extractor reduces raw HTML to cleaned text. Satisfied by extract.Extractor.
type Extractor interface {
	Extract(html string) (string, error)
}

// DirectOption customises a Direct fetcher.
type DirectOption func(*Direct)

// WithDirectHTTPClient overrides the HTTP client, primarily for testing.
func WithDirectHTTPClient(client *http.Client) DirectOption {
	return func(d *Direct) {
		if client != nil {
			d.client = client
		}
	}
}

// WithDirectLogger overrides the fetcher logger.
func WithDirectLogger(logger logSDK.Logger) DirectOption {
	return func(d *Direct) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Direct fetches a URL straight from its origin and runs the body through
// the content extractor.
type Direct struct {
	client    *http.Client
	extractor Extractor
	policy    retrieval.RetryPolicy
	logger    logSDK.Logger
}

// NewDirect constructs a Direct fetcher around the given extractor.
func NewDirect(extractor Extractor, opts ...DirectOption) (*Direct, error) {
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}

	d := &Direct{
		client:    &http.Client{Timeout: directTimeout},
		extractor: extractor,
		policy:    retrieval.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, Backoff: retrieval.FixedBackoff},
		logger:    log.Logger.Named("direct_fetch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Fetch retrieves and extracts the page. Transport failures are retried by
// policy; non-200 statuses, non-HTML bodies and parse failures are terminal
// for this stage and come back as a typed ErrorKind so callers can branch
// without a control-flow exception.
func (d *Direct) Fetch(ctx context.Context, url string) (string, retrieval.ErrorKind, error) {
	var (
		content  string
		kind     retrieval.ErrorKind
		stageErr error
	)

	attemptErr := d.policy.Attempt(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			kind = retrieval.ErrTransport
			stageErr = errors.Wrap(err, "create direct request")
			return nil
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		startAt := time.Now()
		resp, err := d.client.Do(req)
		if err != nil {
			// Transport-level failure: worth another attempt.
			return errors.Wrap(err, "send direct request")
		}
		defer resp.Body.Close()

		d.logger.Debug("direct fetch response",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Duration("cost", time.Since(startAt)),
			zap.Int("attempt", attempt),
		)

		if resp.StatusCode != http.StatusOK {
			kind = retrieval.ErrHTTPStatus
			stageErr = errors.Errorf("origin returned status %d", resp.StatusCode)
			return nil
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") &&
			!strings.Contains(contentType, "application/xhtml") {
			kind = retrieval.ErrUnsupportedContentType
			stageErr = errors.Errorf("unsupported content type %q", contentType)
			return nil
		}

		// charset.NewReader honours the declared encoding, then sniffs the
		// body, then falls back to UTF-8.
		decoded, err := charset.NewReader(io.LimitReader(resp.Body, maxDirectBodyBytes), contentType)
		if err != nil {
			kind = retrieval.ErrParse
			stageErr = errors.Wrap(err, "determine body encoding")
			return nil
		}
		raw, err := io.ReadAll(decoded)
		if err != nil {
			return errors.Wrap(err, "read direct response")
		}

		text, err := d.extractor.Extract(string(raw))
		if err != nil {
			kind = retrieval.ErrParse
			stageErr = errors.Wrap(err, "extract page content")
			return nil
		}
		if strings.TrimSpace(text) == "" {
			kind = retrieval.ErrParse
			stageErr = errors.New("extraction produced no content")
			return nil
		}

		content = Truncate(text)
		kind = retrieval.ErrNone
		stageErr = nil
		return nil
	})
	if attemptErr != nil {
		return "", retrieval.ErrTransport, attemptErr
	}
	return content, kind, stageErr
}
