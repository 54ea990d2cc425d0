package retrieval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PayloadShape tags the recognised raw result layouts so normalization is a
// single switch instead of chained key probing scattered across callers.
type PayloadShape int

const (
	ShapeOrganic PayloadShape = iota
	ShapeResults
	ShapeItems
	ShapeList
	ShapeString
	ShapeOther
)

// RawPayload is the discriminated form of an upstream search response.
// Exactly one of the value fields is meaningful for a given Shape.
type RawPayload struct {
	Shape          PayloadShape
	Entries        []map[string]any
	Text           string
	KnowledgeGraph map[string]any
	Other          map[string]any
}

// DetectPayload classifies a decoded upstream payload.
func DetectPayload(raw any) RawPayload {
	switch v := raw.(type) {
	case string:
		return RawPayload{Shape: ShapeString, Text: v}
	case []any:
		return RawPayload{Shape: ShapeList, Entries: entryMaps(v)}
	case map[string]any:
		kg, _ := v["knowledgeGraph"].(map[string]any)
		for _, probe := range []struct {
			key   string
			shape PayloadShape
		}{
			{"organic", ShapeOrganic},
			{"results", ShapeResults},
			{"items", ShapeItems},
		} {
			if list, ok := v[probe.key].([]any); ok {
				return RawPayload{Shape: probe.shape, Entries: entryMaps(list), KnowledgeGraph: kg}
			}
		}
		return RawPayload{Shape: ShapeOther, Other: v, KnowledgeGraph: kg}
	default:
		return RawPayload{Shape: ShapeOther}
	}
}

// Normalize coerces any supported payload shape into the canonical
// SearchResponse so downstream code never branches on result layout.
func Normalize(query string, payload RawPayload) SearchResponse {
	resp := SearchResponse{Query: query}

	switch payload.Shape {
	case ShapeOrganic, ShapeResults, ShapeItems, ShapeList:
		for _, entry := range payload.Entries {
			result := entryToResult(entry)
			if result.URL == "" && result.Title == "" {
				continue
			}
			resp.OrganicResults = append(resp.OrganicResults, result)
		}
	case ShapeString:
		text := strings.TrimSpace(payload.Text)
		if text != "" {
			if decoded := decodeEmbeddedJSON(text); decoded != nil {
				return Normalize(query, DetectPayload(decoded))
			}
			resp.OrganicResults = append(resp.OrganicResults, SearchResult{
				Title:    query,
				Snippet:  firstChars(text, 300),
				BodyText: text,
			})
		}
	case ShapeOther:
		if len(payload.Other) > 0 {
			body := formatGenericFields(payload.Other)
			resp.OrganicResults = append(resp.OrganicResults, SearchResult{
				Title:    query,
				Snippet:  firstChars(body, 300),
				BodyText: body,
			})
		}
	}

	for i := range resp.OrganicResults {
		if strings.TrimSpace(resp.OrganicResults[i].BodyText) == "" {
			r := &resp.OrganicResults[i]
			r.BodyText = strings.TrimSpace(strings.Join([]string{r.Title, r.Snippet, r.URL}, "\n"))
		}
	}

	if summary := formatKnowledgeGraph(payload.KnowledgeGraph); summary != "" {
		resp.KnowledgeGraphSummary = summary
		if len(resp.OrganicResults) > 0 {
			resp.OrganicResults[0].BodyText = summary + "\n\n" + resp.OrganicResults[0].BodyText
		}
	}

	return resp
}

func entryMaps(list []any) []map[string]any {
	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, m)
		}
	}
	return entries
}

func entryToResult(entry map[string]any) SearchResult {
	return SearchResult{
		Title:    stringField(entry, "title", "name"),
		URL:      stringField(entry, "link", "url"),
		Snippet:  stringField(entry, "snippet", "description", "content"),
		BodyText: stringField(entry, "body", "text"),
	}
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := entry[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// decodeEmbeddedJSON recovers payloads that arrive serialized inside a tool
// result string. Returns nil when the text is not a JSON object or array.
func decodeEmbeddedJSON(text string) any {
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil
	}
	switch decoded.(type) {
	case map[string]any, []any:
		return decoded
	default:
		return nil
	}
}

// formatKnowledgeGraph renders a provider knowledge-graph block as prose.
func formatKnowledgeGraph(kg map[string]any) string {
	if len(kg) == 0 {
		return ""
	}

	var sb strings.Builder
	if title, ok := kg["title"].(string); ok && title != "" {
		sb.WriteString(title)
		if kind, ok := kg["type"].(string); ok && kind != "" {
			sb.WriteString(" (" + kind + ")")
		}
		sb.WriteString("\n")
	}
	if desc, ok := kg["description"].(string); ok && desc != "" {
		sb.WriteString(desc + "\n")
	}
	if attrs, ok := kg["attributes"].(map[string]any); ok && len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for key := range attrs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %v\n", key, attrs[key]))
		}
	}
	return strings.TrimSpace(sb.String())
}

// formatGenericFields renders an unrecognised payload field by field so the
// caller still receives something readable.
func formatGenericFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "knowledgeGraph" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf("%s: %v\n", key, fields[key]))
	}
	return strings.TrimSpace(sb.String())
}

func firstChars(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
