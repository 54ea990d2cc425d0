// Package extract turns raw HTML into markdown-ish plain text, narrowing
// toward the real article or program content through increasingly permissive
// strategies before falling back to the whole document body.
package extract

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/PuerkitoBio/goquery"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	// boilerplateSelector lists elements removed before any strategy runs.
	boilerplateSelector = "script, style, nav, footer, header, aside, iframe, noscript"

	minKeywordContainerChars  = 100
	minCommonContainerChars   = 200
	minSemanticContainerChars = 300
	minUsableChars            = 300
	minParagraphChars         = 100
)

// commonContainerSelectors are checked by strategy two, most specific first.
var commonContainerSelectors = []string{
	"main",
	"#content", "#main-content", "#primary",
	".content", ".main-content", ".page-content", ".entry-content", ".post-content",
	"[role=main]",
}

var semanticSelectors = []string{"article", "section", "main"}

// Extractor runs the main-content detection pipeline.
type Extractor struct {
	keywords  []string
	converter *md.Converter
	logger    logSDK.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithKeywords overrides the domain keyword vocabulary.
func WithKeywords(keywords []string) Option {
	return func(e *Extractor) {
		if len(keywords) > 0 {
			e.keywords = keywords
		}
	}
}

// WithLogger overrides the extractor logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an Extractor with the education keyword vocabulary.
func New(opts ...Option) *Extractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	e := &Extractor{
		keywords:  retrieval.EducationKeywords,
		converter: converter,
		logger:    log.Logger.Named("extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces cleaned markdown text from raw HTML. It returns an error
// only when the document cannot be parsed at all; an empty-but-parsed page
// yields an empty string.
func (e *Extractor) Extract(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.Wrap(err, "parse html document")
	}

	doc.Find(boilerplateSelector).Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	container := e.findContainer(body)

	headingContent := e.headingScopedContent(body)
	containerText := selectionTextLen(container)
	if len(headingContent) >= minUsableChars && len(headingContent) > containerText {
		e.logger.Debug("extractor using heading-scoped content",
			zap.Int("chars", len(headingContent)))
		return e.finalize(headingContent), nil
	}

	if container != nil && containerText >= minUsableChars {
		return e.finalize(e.converter.Convert(container)), nil
	}

	if blocks := e.keywordBlocks(body); len(blocks) >= minUsableChars {
		e.logger.Debug("extractor using keyword block scan",
			zap.Int("chars", len(blocks)))
		return e.finalize(blocks), nil
	}

	// Smaller container beats nothing at all.
	if container != nil && containerText > 0 {
		return e.finalize(e.converter.Convert(container)), nil
	}

	e.logger.Debug("extractor falling back to whole body")
	return e.finalize(e.converter.Convert(body)), nil
}

// findContainer runs the three container strategies in order and returns the
// best qualifying candidate, or nil.
func (e *Extractor) findContainer(body *goquery.Selection) *goquery.Selection {
	if sel := e.keywordContainer(body); sel != nil {
		return sel
	}
	for _, selector := range commonContainerSelectors {
		if sel := longestMatch(body, selector, minCommonContainerChars); sel != nil {
			return sel
		}
	}
	for _, selector := range semanticSelectors {
		if sel := longestMatch(body, selector, minSemanticContainerChars); sel != nil {
			return sel
		}
	}
	return nil
}

// keywordContainer picks the longest element whose id or class carries a
// domain keyword and whose text is non-trivial.
func (e *Extractor) keywordContainer(body *goquery.Selection) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0

	body.Find("[id], [class]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		class, _ := sel.Attr("class")
		marker := strings.ToLower(id + " " + class)
		if !retrieval.ContainsAnyKeyword(marker, e.keywords) {
			return
		}
		if length := selectionTextLen(sel); length > minKeywordContainerChars && length > bestLen {
			best, bestLen = sel, length
		}
	})
	return best
}

// headingScopedContent collects, for every heading matching a domain
// keyword, all sibling content until the next heading of equal or higher
// level, and renders the matched sections as markdown.
func (e *Extractor) headingScopedContent(body *goquery.Selection) string {
	var sections []string

	body.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, heading *goquery.Selection) {
		if !retrieval.ContainsAnyKeyword(heading.Text(), e.keywords) {
			return
		}

		level := headingLevel(goquery.NodeName(heading))
		fragment := []string{outerHTML(heading)}
		heading.NextAll().EachWithBreak(func(_ int, sibling *goquery.Selection) bool {
			name := goquery.NodeName(sibling)
			if siblingLevel := headingLevel(name); siblingLevel > 0 && siblingLevel <= level {
				return false
			}
			switch name {
			case "p", "ul", "ol", "table", "div", "dl", "blockquote":
				fragment = append(fragment, outerHTML(sibling))
			}
			return true
		})

		if len(fragment) > 1 {
			if section, err := e.converter.ConvertString(strings.Join(fragment, "\n")); err == nil {
				sections = append(sections, section)
			}
		}
	})

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// keywordBlocks scans paragraph-level elements and keeps contiguous blocks
// that are long enough and mention at least one domain keyword.
func (e *Extractor) keywordBlocks(body *goquery.Selection) string {
	var blocks []string
	seen := map[string]struct{}{}

	body.Find("p, div, section").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) <= minParagraphChars || !retrieval.ContainsAnyKeyword(text, e.keywords) {
			return
		}
		// Nested divs repeat their children's text; keep each block once.
		if _, dup := seen[text]; dup {
			return
		}
		// Skip wrapper elements whose children already qualify on their own.
		if goquery.NodeName(sel) != "p" && sel.ChildrenFiltered("p, div, section").Length() > 0 {
			return
		}
		seen[text] = struct{}{}
		if block := e.converter.Convert(sel); strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	})

	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}

func longestMatch(body *goquery.Selection, selector string, minChars int) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0
	body.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if length := selectionTextLen(sel); length > minChars && length > bestLen {
			best, bestLen = sel, length
		}
	})
	return best
}

func selectionTextLen(sel *goquery.Selection) int {
	if sel == nil {
		return 0
	}
	return len(strings.TrimSpace(sel.Text()))
}

func headingLevel(nodeName string) int {
	if len(nodeName) == 2 && nodeName[0] == 'h' && nodeName[1] >= '1' && nodeName[1] <= '6' {
		return int(nodeName[1] - '0')
	}
	return 0
}

func outerHTML(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return html
}
