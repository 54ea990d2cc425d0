// Package serper implements the direct keyword-search HTTP engine, the last
// live tier of the search fallback chain.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
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
	// DefaultEndpoint is the keyword-search API endpoint.
	DefaultEndpoint = "https://google.serper.dev/search"

	engineName = "serper_direct"

	httpRequestTimeout = 10 * time.Second
	// logBodyLimit caps the number of response bytes logged for debugging.
	logBodyLimit = 4096
)

// Option configures the Engine instance.
type Option func(*Engine)

// WithHTTPClient overrides the HTTP client used for the search API.
func WithHTTPClient(client *http.Client) Option {
	return func(engine *Engine) {
		if client != nil {
			engine.client = client
		}
	}
}

// WithEndpoint overrides the API endpoint, primarily for testing.
func WithEndpoint(endpoint string) Option {
	return func(engine *Engine) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			engine.endpoint = trimmed
		}
	}
}

// WithLogger overrides the engine logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// WithDefaultParameters merges extra body fields (location, page, tbs, ...)
// into every request.
func WithDefaultParameters(params map[string]any) Option {
	return func(engine *Engine) {
		if len(params) == 0 {
			return
		}
		engine.defaultParams = make(map[string]any, len(params))
		for key, value := range params {
			engine.defaultParams[key] = value
		}
	}
}

// Engine posts queries to the keyword-search API and returns the decoded
// payload for normalization by the chain.
type Engine struct {
	apiKey        string
	endpoint      string
	client        *http.Client
	defaultParams map[string]any
	policy        retrieval.RetryPolicy
	logger        logSDK.Logger
}

// NewEngine constructs the direct search engine. The API key must be
// non-empty at search time.
func NewEngine(apiKey string, opts ...Option) *Engine {
	engine := &Engine{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: httpRequestTimeout},
		// Two retries on transport failures with a 1s pause.
		policy: retrieval.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Backoff: retrieval.FixedBackoff},
		logger: log.Logger.Named("serper_direct"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// Name returns the identifier used by the chain to distinguish the engine.
func (e *Engine) Name() string {
	return engineName
}

// Search performs the API request. A 400 response whose body points at a
// parameter-naming mismatch is retried once with the alternate "query"
// naming before giving up.
func (e *Engine) Search(ctx context.Context, query string) (retrieval.RawPayload, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return retrieval.RawPayload{}, errors.New("search query cannot be empty")
	}
	if e.apiKey == "" {
		return retrieval.RawPayload{}, errors.New("search api key is not configured")
	}

	payload, err := e.post(ctx, e.requestBody(trimmed, "q"))
	if err == nil {
		return payload, nil
	}

	if isParamMismatch(err) {
		e.logger.Warn("search api rejected parameter naming, retrying with alternate",
			zap.String("query", trimmed), zap.Error(err))
		return e.post(ctx, e.requestBody(trimmed, "query"))
	}
	return retrieval.RawPayload{}, err
}

// requestBody builds the JSON body with the query under the given key name.
func (e *Engine) requestBody(query, queryKey string) map[string]any {
	body := map[string]any{
		queryKey:      query,
		"gl":          "us",
		"hl":          "en",
		"num":         10,
		"autocorrect": true,
	}
	for key, value := range e.defaultParams {
		if _, exists := body[key]; !exists {
			body[key] = value
		}
	}
	return body
}

// paramMismatchError marks a 400-class response complaining about request
// parameter naming. It is not retried by the transport policy.
type paramMismatchError struct {
	detail string
}

func (e *paramMismatchError) Error() string {
	return "search api parameter mismatch: " + e.detail
}

func isParamMismatch(err error) bool {
	var pm *paramMismatchError
	return errors.As(err, &pm)
}

func (e *Engine) post(ctx context.Context, body map[string]any) (retrieval.RawPayload, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return retrieval.RawPayload{}, errors.Wrap(err, "marshal search request")
	}

	var decoded any
	var paramMismatch bool
	attemptErr := e.policy.Attempt(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(encoded))
		if err != nil {
			return errors.Wrap(err, "create search request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", e.apiKey)

		startAt := time.Now()
		resp, err := e.client.Do(req)
		if err != nil {
			return errors.Wrap(err, "send search request")
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read search response")
		}

		truncatedBody, truncated := truncateForLog(raw, logBodyLimit)
		e.logger.Debug("incoming search response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncatedBody),
			zap.Bool("body_truncated", truncated),
			zap.Duration("cost", time.Since(startAt)),
			zap.Int("attempt", attempt),
		)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && looksLikeParamComplaint(raw) {
			// Wrong naming will fail identically on every retry; surface it
			// to Search so it can swap the parameter set instead.
			paramMismatch = true
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("search api returned status %d: %s", resp.StatusCode, truncatedBody)
		}

		if err := json.Unmarshal(raw, &decoded); err != nil {
			return errors.Wrap(err, "unmarshal search response")
		}
		return nil
	})
	if attemptErr != nil {
		return retrieval.RawPayload{}, attemptErr
	}
	if paramMismatch {
		return retrieval.RawPayload{}, &paramMismatchError{detail: "4xx response flagged missing query parameter"}
	}

	return retrieval.DetectPayload(decoded), nil
}

// looksLikeParamComplaint matches known 400 bodies produced when the query
// field is named differently than the API expects.
func looksLikeParamComplaint(body []byte) bool {
	lowered := strings.ToLower(string(body))
	if !strings.Contains(lowered, "param") && !strings.Contains(lowered, "query") {
		return false
	}
	return strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "invalid")
}

// truncateForLog limits the payload logged for debugging and reports whether
// truncation occurred.
func truncateForLog(body []byte, limit int) (string, bool) {
	if len(body) <= limit {
		return string(body), false
	}
	return string(body[:limit]), true
}
