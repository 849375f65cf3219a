package kb

import (
	"context"

	"github.com/kbmcp/kbmcp/internal/backend"
	"github.com/kbmcp/kbmcp/internal/kberrors"
)

const highlightFragmentChars = 500

// Search runs phrases against every KB matching the index prefix (§4.3).
func (m *Manager) Search(ctx context.Context, phrases []string, nHits, nFragments int) ([]SearchOutcome, error) {
	return m.searchRestricted(ctx, nil, phrases, nHits, nFragments)
}

// SearchByName restricts candidate KBs to those named in names. An empty
// name list means "no restriction" (equivalent to Search) (§4.1).
func (m *Manager) SearchByName(ctx context.Context, names, phrases []string, nHits, nFragments int) ([]SearchOutcome, error) {
	return m.searchRestricted(ctx, names, phrases, nHits, nFragments)
}

func (m *Manager) searchRestricted(ctx context.Context, names, phrases []string, nHits, nFragments int) ([]SearchOutcome, error) {
	if len(phrases) == 0 {
		return nil, nil
	}

	queries := make([]backend.SearchQuery, len(phrases))
	for i, phrase := range phrases {
		queries[i] = backend.SearchQuery{
			IndexPattern: m.indexPattern(),
			Body:         phraseToQuery(phrase, names, nHits, nFragments),
		}
	}

	responses, err := m.backend.MultiSearch(ctx, queries)
	if err != nil {
		return nil, kberrors.New(kberrors.Search, "searching knowledge bases", err)
	}

	outcomes := make([]SearchOutcome, len(phrases))
	for i, phrase := range phrases {
		if i >= len(responses) || len(responses[i].Hits) == 0 {
			outcomes[i] = SearchOutcome{Err: &SearchResultError{
				Phrase: phrase,
				Error:  "No hits found in one of the search responses.",
			}}
			continue
		}
		outcomes[i] = SearchOutcome{Result: assembleResult(phrase, responses[i])}
	}

	return outcomes, nil
}

// phraseToQuery builds the query for a single phrase (§4.3): a lexical
// match on headings (boost=1) and a semantic match on body (boost=5),
// restricted by a terms filter on knowledge_base_name (or match_all if
// names is empty), with a relevance floor, highlighting, and a per-KB
// terms aggregation.
func phraseToQuery(phrase string, names []string, nHits, nFragments int) map[string]any {
	var filter map[string]any
	if len(names) == 0 {
		filter = map[string]any{"match_all": map[string]any{}}
	} else {
		filter = map[string]any{"terms": map[string]any{"knowledge_base_name": names}}
	}

	headingMatch := map[string]any{"match": map[string]any{"headings": map[string]any{"query": phrase, "boost": 1}}}
	semanticMatch := map[string]any{"semantic": map[string]any{"field": "body", "query": phrase, "boost": 5}}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filter,
				"should": []any{headingMatch, semanticMatch},
			},
		},
		"min_score": 10,
		"sort":      []any{map[string]any{"_score": map[string]any{"order": "desc"}}},
		"size":      nHits,
		"highlight": map[string]any{
			"fields":              map[string]any{"body": map[string]any{}},
			"number_of_fragments": nFragments,
			"fragment_size":       highlightFragmentChars,
		},
		"fields": []string{"title", "url", "body", "knowledge_base_name"},
		"aggs": map[string]any{
			"knowledge_base_name": map[string]any{
				"terms": map[string]any{"field": "knowledge_base_name"},
			},
		},
	}
}

func assembleResult(phrase string, resp backend.SearchResponse) *SearchResult {
	results := make([]Document, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToDocument("", hit))
	}

	summaries := make([]PerKBSummary, 0, len(resp.Buckets))
	for _, b := range resp.Buckets {
		summaries = append(summaries, PerKBSummary{KnowledgeBaseName: b.Key, Matches: b.Count})
	}

	return &SearchResult{Phrase: phrase, Results: results, Summaries: summaries}
}

// hitToDocument projects a backend hit into a Document (§4.3.1). fallbackKB
// names the KB the hit was read from directly (e.g. GetRecentDocuments,
// which queries a single KB and never needs the knowledge_base_name field);
// it is only used when the hit carries no such field itself.
func hitToDocument(fallbackKB string, hit backend.Hit) Document {
	kbName := firstHitField(hit, "knowledge_base_name")
	if kbName == "" {
		kbName = fallbackKB
	}
	if kbName == "" {
		kbName = "<Unknown KB>"
	}

	title := firstHitField(hit, "title")
	if title == "" {
		title = "<No Title>"
	}

	url := firstHitField(hit, "url")

	var content []string
	if hl, ok := hit.Highlight["body"]; ok && len(hl) > 0 {
		content = hl
	} else if body := firstHitField(hit, "body"); body != "" {
		content = []string{body}
	}

	return Document{
		ID:                hit.ID,
		KnowledgeBaseName: kbName,
		Title:             title,
		URL:               url,
		Score:             hit.Score,
		Content:           content,
	}
}

// firstHitField reads the first value for key, preferring the hit's fields
// block (the only place runtime fields like knowledge_base_name appear)
// over the stored source.
func firstHitField(hit backend.Hit, key string) string {
	if s := firstStringField(hit.Fields, key); s != "" {
		return s
	}
	return firstStringField(hit.Source, key)
}

func firstStringField(source map[string]any, key string) string {
	v, ok := source[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
