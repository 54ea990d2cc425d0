package extract

import (
	"regexp"
	"strings"
)

var (
	deepHeadingRe   = regexp.MustCompile(`(?m)^#{4,6}\s`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	repeatedSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
	trailingSpaceRe = regexp.MustCompile(`(?m)[ \t]+$`)
)

// placeholderTokens are boilerplate phrases stripped from extracted text.
var placeholderTokens = []string{
	"skip to main content",
	"skip to content",
	"javascript is disabled",
	"please enable javascript",
	"enable javascript to view",
	"your browser does not support",
	"accept all cookies",
	"we use cookies",
	"loading...",
}

// finalize applies the output formatting rules: heading depth capped at
// three, repeated spaces collapsed, blank-line runs collapsed to two, known
// placeholder lines removed.
func (e *Extractor) finalize(markdown string) string {
	out := deepHeadingRe.ReplaceAllString(markdown, "### ")
	out = repeatedSpaceRe.ReplaceAllString(out, " ")
	out = trailingSpaceRe.ReplaceAllString(out, "")
	out = stripPlaceholderLines(out)
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func stripPlaceholderLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		lowered := strings.ToLower(strings.TrimSpace(line))
		drop := false
		for _, token := range placeholderTokens {
			if lowered == token || (lowered != "" && len(lowered) < 80 && strings.Contains(lowered, token)) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
