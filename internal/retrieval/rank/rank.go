// Package rank scores organic search results for official-source
// likelihood, reorders them, and enriches the most promising candidates
// with scraped page bodies.
package rank

import (
	"net/url"
	"sort"
	"strings"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
)

const (
	officialDomainScore  = 100
	aggregatorPenalty    = -50
	urlKeywordScore      = 10
	titleKeywordScore    = 5
	snippetKeywordScore  = 3
	unofficialPenalty    = -5
	listiclePenalty      = -10
	eduBonus             = 50
	shallowPathBonus     = 20
	shallowPathSegments  = 4
	enrichScoreThreshold = 30
)

// Score computes the official-source likelihood for one result. The
// heuristic is purely additive so ordering of checks does not matter.
func Score(result retrieval.SearchResult) int {
	loweredURL := strings.ToLower(result.URL)
	score := 0

	official := isOfficialDomain(loweredURL)
	if official {
		score += officialDomainScore
	}
	if isAggregator(loweredURL) {
		score += aggregatorPenalty
	}

	score += urlKeywordScore * retrieval.CountKeywordMatches(loweredURL, retrieval.EducationKeywords)
	score += titleKeywordScore * retrieval.CountKeywordMatches(result.Title, retrieval.EducationKeywords)
	score += snippetKeywordScore * retrieval.CountKeywordMatches(result.Snippet, retrieval.EducationKeywords)

	unofficialHits := retrieval.CountKeywordMatches(loweredURL, retrieval.UnofficialKeywords)
	score += unofficialPenalty * unofficialHits
	if retrieval.ContainsAnyKeyword(result.Title, retrieval.ListicleMarkers) {
		score += listiclePenalty
	}

	if strings.Contains(loweredURL, ".edu/") && unofficialHits == 0 {
		score += eduBonus
	}
	if pathDepth(result.URL) <= shallowPathSegments {
		score += shallowPathBonus
	}

	return score
}

// Rank returns the same results reordered by descending official score,
// with the derived score attached to each element.
func Rank(results []retrieval.SearchResult) []retrieval.SearchResult {
	ranked := make([]retrieval.SearchResult, len(results))
	copy(ranked, results)
	for i := range ranked {
		ranked[i].OfficialScore = Score(ranked[i])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OfficialScore > ranked[j].OfficialScore
	})
	return ranked
}

// EnrichTargets selects, from score-ordered results, the indices worth
// scraping: the top three official-domain candidates plus further
// non-flagged candidates above the score threshold, capped at maxTargets.
func EnrichTargets(ranked []retrieval.SearchResult, maxTargets int) []int {
	if maxTargets <= 0 {
		return nil
	}

	var targets []int
	officials := 0
	for idx, result := range ranked {
		if len(targets) >= maxTargets {
			break
		}
		lowered := strings.ToLower(result.URL)
		if result.URL == "" || result.Synthetic {
			continue
		}
		switch {
		case isOfficialDomain(lowered) && officials < 3:
			targets = append(targets, idx)
			officials++
		case result.OfficialScore > enrichScoreThreshold && !flagged(lowered):
			targets = append(targets, idx)
		}
	}
	return targets
}

// PartitionOfficial moves results marked official to the front, preserving
// relative order within both partitions.
func PartitionOfficial(results []retrieval.SearchResult) []retrieval.SearchResult {
	partitioned := make([]retrieval.SearchResult, 0, len(results))
	for _, result := range results {
		if result.IsOfficial {
			partitioned = append(partitioned, result)
		}
	}
	for _, result := range results {
		if !result.IsOfficial {
			partitioned = append(partitioned, result)
		}
	}
	return partitioned
}

func isOfficialDomain(loweredURL string) bool {
	for _, pattern := range retrieval.OfficialDomainPatterns {
		if strings.Contains(loweredURL, pattern) {
			return true
		}
	}
	return false
}

func isAggregator(loweredURL string) bool {
	for _, domain := range retrieval.AggregatorDomains {
		if strings.Contains(loweredURL, domain) {
			return true
		}
	}
	return false
}

func flagged(loweredURL string) bool {
	return isAggregator(loweredURL) ||
		retrieval.ContainsAnyKeyword(loweredURL, retrieval.UnofficialKeywords)
}

// pathDepth counts non-empty path segments; unparseable URLs count as deep.
func pathDepth(raw string) int {
	parsed, err := url.Parse(raw)
	if err != nil {
		return shallowPathSegments + 1
	}
	depth := 0
	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment != "" {
			depth++
		}
	}
	return depth
}
