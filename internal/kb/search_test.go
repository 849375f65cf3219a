package kb

import (
	"context"
	"testing"

	"github.com/kbmcp/kbmcp/internal/backend"
)

func TestManager_Search_EmptyPhrasesReturnsEmpty(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")

	outcomes, err := m.Search(context.Background(), nil, 5, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes for an empty phrase batch, got %d", len(outcomes))
	}
}

func TestManager_Search_PreservesPhraseOrderAndCount(t *testing.T) {
	be := newFakeBackend()
	be.searchFunc = func(queries []backend.SearchQuery) ([]backend.SearchResponse, error) {
		resp := make([]backend.SearchResponse, len(queries))
		for i := range queries {
			resp[i] = backend.SearchResponse{
				Hits: []backend.Hit{{ID: "doc-1", Score: 20, Source: map[string]any{"knowledge_base_name": "docs.example"}}},
				Buckets: []backend.Bucket{
					{Key: "docs.example", Count: 1},
				},
			}
		}
		return resp, nil
	}
	m := NewManager(be, "kbmcp")

	phrases := []string{"first phrase", "second phrase", "third phrase"}
	outcomes, err := m.Search(context.Background(), phrases, 5, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != len(phrases) {
		t.Fatalf("expected %d outcomes, got %d", len(phrases), len(outcomes))
	}
	for i, phrase := range phrases {
		if outcomes[i].IsError() {
			t.Fatalf("outcome %d: unexpected error outcome: %+v", i, outcomes[i].Err)
		}
		if outcomes[i].Result.Phrase != phrase {
			t.Errorf("outcome %d: phrase = %q, want %q", i, outcomes[i].Result.Phrase, phrase)
		}
	}
}

func TestManager_Search_NoHitsYieldsErrorOutcome(t *testing.T) {
	be := newFakeBackend()
	be.searchFunc = func(queries []backend.SearchQuery) ([]backend.SearchResponse, error) {
		return []backend.SearchResponse{{}}, nil
	}
	m := NewManager(be, "kbmcp")

	outcomes, err := m.Search(context.Background(), []string{"no results here"}, 5, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].IsError() {
		t.Fatalf("expected a single error outcome, got %+v", outcomes)
	}
	if outcomes[0].Err.Phrase != "no results here" {
		t.Errorf("expected error outcome to carry the original phrase, got %q", outcomes[0].Err.Phrase)
	}
}

func TestManager_Search_SummariesCoverAtLeastAllResults(t *testing.T) {
	be := newFakeBackend()
	be.searchFunc = func(queries []backend.SearchQuery) ([]backend.SearchResponse, error) {
		return []backend.SearchResponse{{
			Hits: []backend.Hit{
				{ID: "doc-1", Score: 30, Source: map[string]any{"knowledge_base_name": "docs.a"}},
				{ID: "doc-2", Score: 20, Source: map[string]any{"knowledge_base_name": "docs.a"}},
			},
			Buckets: []backend.Bucket{{Key: "docs.a", Count: 5}},
		}}, nil
	}
	m := NewManager(be, "kbmcp")

	outcomes, err := m.Search(context.Background(), []string{"q"}, 5, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := outcomes[0].Result
	if result.Results[0].Score < result.Results[1].Score {
		t.Errorf("expected hits sorted by non-increasing score, got %v then %v", result.Results[0].Score, result.Results[1].Score)
	}

	total := 0
	for _, s := range result.Summaries {
		total += s.Matches
	}
	if total < len(result.Results) {
		t.Errorf("expected sum(summaries.matches) >= len(results), got %d < %d", total, len(result.Results))
	}
}

func TestHitToDocument_FallsBackToBodyWhenNoHighlight(t *testing.T) {
	doc := hitToDocument("docs.example", backend.Hit{
		ID:     "doc-1",
		Score:  11,
		Source: map[string]any{"title": "Example", "body": "full body text"},
	})
	if len(doc.Content) != 1 || doc.Content[0] != "full body text" {
		t.Errorf("expected content to fall back to source body, got %v", doc.Content)
	}
	if doc.KnowledgeBaseName != "docs.example" {
		t.Errorf("expected fallback KB name, got %q", doc.KnowledgeBaseName)
	}
}

func TestHitToDocument_PrefersHighlightOverBody(t *testing.T) {
	doc := hitToDocument("docs.example", backend.Hit{
		ID:        "doc-1",
		Score:     11,
		Source:    map[string]any{"title": "Example", "body": "full body text"},
		Highlight: map[string][]string{"body": {"...full..."}},
	})
	if len(doc.Content) != 1 || doc.Content[0] != "...full..." {
		t.Errorf("expected content to come from highlight, got %v", doc.Content)
	}
}

func TestHitToDocument_ReadsRuntimeFieldFromFieldsBlock(t *testing.T) {
	doc := hitToDocument("", backend.Hit{
		ID:    "doc-1",
		Score: 11,
		Fields: map[string]any{
			"knowledge_base_name": []any{"docs.example"},
			"title":               []any{"Example"},
			"url":                 []any{"https://example.com/page"},
		},
	})
	if doc.KnowledgeBaseName != "docs.example" {
		t.Errorf("expected KB name from the fields block, got %q", doc.KnowledgeBaseName)
	}
	if doc.Title != "Example" || doc.URL != "https://example.com/page" {
		t.Errorf("expected title/url from the fields block, got %+v", doc)
	}
}

func TestHitToDocument_MissingFieldsFallBackToDefaults(t *testing.T) {
	doc := hitToDocument("", backend.Hit{ID: "doc-1", Score: 11, Source: map[string]any{}})
	if doc.KnowledgeBaseName != "<Unknown KB>" {
		t.Errorf("expected default KB name, got %q", doc.KnowledgeBaseName)
	}
	if doc.Title != "<No Title>" {
		t.Errorf("expected default title, got %q", doc.Title)
	}
}
