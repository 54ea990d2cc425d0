package retrieval

// Stage identifies a checkpoint the facade reports through ProgressFunc.
type Stage string

const (
	StageHandshakeStart Stage = "handshake_start"
	StageHandshakeDone  Stage = "handshake_done"
	StageSearchAttempt  Stage = "search_attempt"
	StageSearchFallback Stage = "search_fallback"
	StageScrapeAttempt  Stage = "scrape_attempt"
	StageEnrichURL      Stage = "enrich_url"
)

// ProgressFunc receives progress checkpoints so a UI can subscribe without
// the retrieval logic depending on one. A nil callback disables reporting.
type ProgressFunc func(stage Stage, detail string)

// Report invokes the callback when one is set.
func (f ProgressFunc) Report(stage Stage, detail string) {
	if f != nil {
		f(stage, detail)
	}
}
