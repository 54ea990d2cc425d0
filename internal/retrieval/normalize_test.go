package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectPayload(t *testing.T) {
	t.Parallel()

	t.Run("organic", func(t *testing.T) {
		t.Parallel()
		payload := DetectPayload(map[string]any{
			"organic": []any{map[string]any{"title": "a"}},
		})
		require.Equal(t, ShapeOrganic, payload.Shape)
		require.Len(t, payload.Entries, 1)
	})

	t.Run("results", func(t *testing.T) {
		t.Parallel()
		payload := DetectPayload(map[string]any{
			"results": []any{map[string]any{"name": "a"}},
		})
		require.Equal(t, ShapeResults, payload.Shape)
	})

	t.Run("items", func(t *testing.T) {
		t.Parallel()
		payload := DetectPayload(map[string]any{
			"items": []any{map[string]any{"url": "https://a"}},
		})
		require.Equal(t, ShapeItems, payload.Shape)
	})

	t.Run("bare list", func(t *testing.T) {
		t.Parallel()
		payload := DetectPayload([]any{map[string]any{"title": "a"}, "junk"})
		require.Equal(t, ShapeList, payload.Shape)
		require.Len(t, payload.Entries, 1)
	})

	t.Run("string", func(t *testing.T) {
		t.Parallel()
		payload := DetectPayload("plain text")
		require.Equal(t, ShapeString, payload.Shape)
		require.Equal(t, "plain text", payload.Text)
	})

	t.Run("knowledge graph captured alongside organic", func(t *testing.T) {
		t.Parallel()
		payload := DetectPayload(map[string]any{
			"organic":        []any{map[string]any{"title": "a"}},
			"knowledgeGraph": map[string]any{"title": "ETH Zurich"},
		})
		require.Equal(t, ShapeOrganic, payload.Shape)
		require.NotNil(t, payload.KnowledgeGraph)
	})
}

func TestNormalizeOrganicEntries(t *testing.T) {
	t.Parallel()

	payload := DetectPayload(map[string]any{
		"organic": []any{
			map[string]any{
				"title":   "MSc Robotics",
				"link":    "https://ethz.ch/robotics",
				"snippet": "Two year program.",
			},
			map[string]any{"position": 2}, // no title, no url
		},
	})

	resp := Normalize("eth robotics msc", payload)
	require.Len(t, resp.OrganicResults, 1)

	got := resp.OrganicResults[0]
	require.Equal(t, "MSc Robotics", got.Title)
	require.Equal(t, "https://ethz.ch/robotics", got.URL)
	// BodyText is synthesized from the visible fields when absent.
	require.Contains(t, got.BodyText, "MSc Robotics")
	require.Contains(t, got.BodyText, "Two year program.")
	require.Contains(t, got.BodyText, "https://ethz.ch/robotics")
}

func TestNormalizeAlternateFieldNames(t *testing.T) {
	t.Parallel()

	payload := DetectPayload(map[string]any{
		"results": []any{
			map[string]any{
				"name":        "Admissions",
				"url":         "https://example.edu/apply",
				"description": "How to apply.",
			},
		},
	})

	resp := Normalize("q", payload)
	require.Len(t, resp.OrganicResults, 1)
	require.Equal(t, "Admissions", resp.OrganicResults[0].Title)
	require.Equal(t, "https://example.edu/apply", resp.OrganicResults[0].URL)
	require.Equal(t, "How to apply.", resp.OrganicResults[0].Snippet)
}

func TestNormalizeKnowledgeGraph(t *testing.T) {
	t.Parallel()

	payload := DetectPayload(map[string]any{
		"organic": []any{
			map[string]any{"title": "a", "link": "https://a"},
		},
		"knowledgeGraph": map[string]any{
			"title":       "ETH Zurich",
			"type":        "University",
			"description": "Public research university in Zurich.",
			"attributes":  map[string]any{"Founded": "1855"},
		},
	})

	resp := Normalize("eth zurich", payload)
	require.Contains(t, resp.KnowledgeGraphSummary, "ETH Zurich (University)")
	require.Contains(t, resp.KnowledgeGraphSummary, "Public research university")
	require.Contains(t, resp.KnowledgeGraphSummary, "- Founded: 1855")
	// the first organic result carries the summary in its body
	require.Contains(t, resp.OrganicResults[0].BodyText, "ETH Zurich (University)")
}

func TestNormalizeEmbeddedJSONString(t *testing.T) {
	t.Parallel()

	raw := `{"organic":[{"title":"a","link":"https://a","snippet":"s"}]}`
	resp := Normalize("q", DetectPayload(raw))
	require.Len(t, resp.OrganicResults, 1)
	require.Equal(t, "https://a", resp.OrganicResults[0].URL)
}

func TestNormalizePlainString(t *testing.T) {
	t.Parallel()

	resp := Normalize("my query", DetectPayload("some human readable answer"))
	require.Len(t, resp.OrganicResults, 1)
	require.Equal(t, "my query", resp.OrganicResults[0].Title)
	require.Equal(t, "some human readable answer", resp.OrganicResults[0].BodyText)
}

func TestNormalizeGenericPayload(t *testing.T) {
	t.Parallel()

	payload := DetectPayload(map[string]any{
		"answer": "42",
		"source": "upstream",
	})
	require.Equal(t, ShapeOther, payload.Shape)

	resp := Normalize("q", payload)
	require.Len(t, resp.OrganicResults, 1)
	require.Contains(t, resp.OrganicResults[0].BodyText, "answer: 42")
	require.Contains(t, resp.OrganicResults[0].BodyText, "source: upstream")
}

func TestNormalizeEmpty(t *testing.T) {
	t.Parallel()

	resp := Normalize("q", DetectPayload(map[string]any{}))
	require.Empty(t, resp.OrganicResults)
	require.False(t, resp.Degraded())
}

func TestNormalizeQueryAndURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "eth zurich msc", NormalizeQuery("  ETH   Zurich MSc "))
	require.Equal(t, "https://ethz.ch/robotics", NormalizeURL("HTTPS://ETHZ.CH/robotics/#section"))
	require.Equal(t, "https://ethz.ch/robotics", NormalizeURL("https://ethz.ch/robotics/"))
}
