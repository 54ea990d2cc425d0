package toolsearch

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	engineName = "tool_invocation"

	// retryPause separates the two invocation attempts for errors that are
	// not a parameter-set mismatch.
	retryPause = 2 * time.Second
)

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithEngineLogger overrides the engine logger.
func WithEngineLogger(logger logSDK.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine exposes the tool-invocation session as a search chain engine.
type Engine struct {
	session *Session
	logger  logSDK.Logger
}

// NewEngine wraps the session so it satisfies the retrieval.Engine contract.
func NewEngine(session *Session, opts ...EngineOption) (*Engine, error) {
	if session == nil {
		return nil, errors.New("tool session is required")
	}

	e := &Engine{
		session: session,
		logger:  log.Logger.Named("tool_engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name returns the identifier used by the chain to distinguish the engine.
func (e *Engine) Name() string {
	return engineName
}

// Search invokes the discovered search tool. The primary parameter set
// carries the query under every known alias for format compatibility; a
// "required parameter missing" class error triggers one retry with the
// minimal set, any other error one retry with the same arguments.
func (e *Engine) Search(ctx context.Context, query string) (retrieval.RawPayload, error) {
	capability, err := e.session.Capability(ctx)
	if err != nil {
		return retrieval.RawPayload{}, errors.Wrap(err, "tool capability unavailable")
	}
	if !capability.HasSearch() {
		return retrieval.RawPayload{}, errors.New("session exposes no search tool")
	}

	payload, err := e.invoke(ctx, capability.SearchToolID, primaryArgs(query))
	if err == nil {
		return payload, nil
	}

	if isMissingParam(err) {
		e.logger.Warn("search tool rejected primary parameter set, retrying minimal",
			zap.String("tool", capability.SearchToolID), zap.Error(err))
		return e.invoke(ctx, capability.SearchToolID, minimalArgs(query))
	}

	e.logger.Warn("search tool invocation failed, retrying once",
		zap.String("tool", capability.SearchToolID), zap.Error(err))
	select {
	case <-ctx.Done():
		return retrieval.RawPayload{}, errors.Wrap(ctx.Err(), "tool retry cancelled")
	case <-time.After(retryPause):
	}
	return e.invoke(ctx, capability.SearchToolID, primaryArgs(query))
}

func (e *Engine) invoke(ctx context.Context, toolID string, args map[string]any) (retrieval.RawPayload, error) {
	raw, err := e.session.CallTool(ctx, toolID, args)
	if err != nil {
		return retrieval.RawPayload{}, err
	}
	if raw == nil {
		return retrieval.RawPayload{}, errors.Errorf("tool %q returned no payload", toolID)
	}
	return retrieval.DetectPayload(raw), nil
}

// primaryArgs spreads the query across the alias keys different server
// implementations expect, plus locale and result-count fields.
func primaryArgs(query string) map[string]any {
	return map[string]any{
		"query":      query,
		"q":          query,
		"gl":         "us",
		"hl":         "en",
		"num":        10,
		"numResults": 10,
	}
}

// minimalArgs is the reduced set for servers with strict schemas.
func minimalArgs(query string) map[string]any {
	return map[string]any{
		"q":  query,
		"gl": "us",
	}
}

// isMissingParam matches "required parameter missing" class tool errors.
func isMissingParam(err error) bool {
	if err == nil {
		return false
	}
	lowered := strings.ToLower(err.Error())
	if !strings.Contains(lowered, "param") && !strings.Contains(lowered, "argument") &&
		!strings.Contains(lowered, "field") {
		return false
	}
	return strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "unexpected") ||
		strings.Contains(lowered, "invalid")
}
