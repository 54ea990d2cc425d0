package retrieval

import "strings"

// EducationKeywords is the vocabulary used to recognise program and
// admission related content in URLs, titles, snippets and page bodies.
var EducationKeywords = []string{
	"program", "programme", "course", "degree", "admission", "admissions",
	"curriculum", "faculty", "research", "university", "college", "graduate",
	"postgraduate", "undergraduate", "master", "msc", "phd", "bachelor",
	"requirements", "application", "tuition", "scholarship", "department",
	"school", "module", "syllabus", "entry",
}

// UnofficialKeywords flag third-party commentary rather than institutional
// pages when they appear inside a URL.
var UnofficialKeywords = []string{
	"forum", "blog", "review", "ranking", "rankings", "compare",
	"discussion", "thread", "agent", "consult",
}

// OfficialDomainPatterns match URLs hosted by accredited institutions.
var OfficialDomainPatterns = []string{
	".edu/", ".edu.au/", ".edu.cn/", ".edu.sg/", ".edu.hk/",
	".ac.uk/", ".ac.nz/", ".ac.jp/", ".ac.cn/", ".uni-", ".universite-",
}

// AggregatorDomains are ranking or listing sites that repackage official
// information. They are demoted by the ranker and filtered by the facade.
var AggregatorDomains = []string{
	"studyportals.com", "mastersportal.com", "bachelorsportal.com",
	"topuniversities.com", "timeshighereducation.com", "usnews.com",
	"niche.com", "shanghairanking.com", "collegedunia.com", "idp.com",
	"reddit.com", "quora.com", "thegradcafe.com", "collegeconfidential.com",
	"yocket.com", "leverageedu.com", "shiksha.com",
}

// ListicleMarkers in a title suggest a "best/top N" style article.
var ListicleMarkers = []string{"best", "top", "ranking", "ranked", "vs"}

// CountKeywordMatches returns how many of the keywords occur in text,
// matched case-insensitively. Repeated occurrences of one keyword count once.
func CountKeywordMatches(text string, keywords []string) int {
	lowered := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			matches++
		}
	}
	return matches
}

// ContainsAnyKeyword reports whether at least one keyword occurs in text.
func ContainsAnyKeyword(text string, keywords []string) bool {
	return CountKeywordMatches(text, keywords) > 0
}
