package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
)

func newTestElasticsearch(t *testing.T, handler http.HandlerFunc) *Elasticsearch {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("failed to build test client: %v", err)
	}
	return &Elasticsearch{
		client:         client,
		requestTimeout: defaultRequestTimeout,
		searchTimeout:  defaultSearchTimeout,
		bulkMaxItems:   defaultBulkMaxItems,
		bulkMaxBytes:   defaultBulkMaxBytes,
	}
}

func TestElasticsearch_Ping(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	})

	if err := es.Ping(context.Background()); err != nil {
		t.Fatalf("expected Ping to succeed, got %v", err)
	}
}

func TestElasticsearch_Stats_NoMatchingIndices(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	stats, err := es.Stats(context.Background(), "kbmcp-*")
	if err != nil {
		t.Fatalf("expected no error on 404, got %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected empty stats map, got %v", stats)
	}
}

func TestElasticsearch_Stats_ParsesDocCounts(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"index": "kbmcp-docs.example-abcd1234", "docs.count": "42"},
		})
	})

	stats, err := es.Stats(context.Background(), "kbmcp-*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats["kbmcp-docs.example-abcd1234"] != 42 {
		t.Errorf("expected 42 docs, got %d", stats["kbmcp-docs.example-abcd1234"])
	}
}

func TestElasticsearch_BulkIndex_CollectsItemErrors(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": true,
			"items": []map[string]any{
				{"index": map[string]any{"_id": "doc-1"}},
				{"index": map[string]any{"_id": "doc-2", "error": map[string]any{"reason": "mapper_parsing_exception"}}},
			},
		})
	})

	itemErrs, err := es.BulkIndex(context.Background(), []BulkOp{
		{Index: "kbmcp-docs.example-abcd1234", Action: "index", Source: map[string]any{"title": "a"}},
		{Index: "kbmcp-docs.example-abcd1234", Action: "index", Source: map[string]any{"title": "b"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(itemErrs) != 1 || itemErrs[0].DocID != "doc-2" {
		t.Errorf("expected a single item error for doc-2, got %v", itemErrs)
	}
}

func TestElasticsearch_BulkIndex_Empty(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be made for an empty bulk op slice")
	})

	itemErrs, err := es.BulkIndex(context.Background(), nil)
	if err != nil || itemErrs != nil {
		t.Errorf("expected no-op for empty ops, got itemErrs=%v err=%v", itemErrs, err)
	}
}

func TestElasticsearch_BulkIndex_SplitsByMaxItems(t *testing.T) {
	requests := 0
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": false, "items": []map[string]any{}})
	})
	es.bulkMaxItems = 2

	ops := make([]BulkOp, 5)
	for i := range ops {
		ops[i] = BulkOp{Index: "kbmcp-docs.example-abcd1234", Action: "index", Source: map[string]any{"title": "t"}}
	}

	if _, err := es.BulkIndex(context.Background(), ops); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 3 {
		t.Errorf("expected 5 ops at max 2 per request to make 3 requests, got %d", requests)
	}
}

func TestElasticsearch_MultiSearch_ProjectsHitsAndBuckets(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"responses": []map[string]any{
				{
					"hits": map[string]any{
						"hits": []map[string]any{
							{
								"_index":    "kbmcp-docs.example-abcd1234",
								"_id":       "doc-1",
								"_score":    12.5,
								"_source":   map[string]any{"title": "Example"},
								"fields":    map[string]any{"knowledge_base_name": []string{"docs.example"}},
								"highlight": map[string]any{"body": []string{"...snippet..."}},
							},
						},
					},
					"aggregations": map[string]any{
						"knowledge_base_name": map[string]any{
							"buckets": []map[string]any{
								{"key": "docs.example", "doc_count": 1},
							},
						},
					},
				},
			},
		})
	})

	resp, err := es.MultiSearch(context.Background(), []SearchQuery{
		{IndexPattern: "kbmcp-*", Body: map[string]any{"query": map[string]any{"match_all": map[string]any{}}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resp))
	}
	if len(resp[0].Hits) != 1 || resp[0].Hits[0].ID != "doc-1" {
		t.Errorf("expected a single hit for doc-1, got %v", resp[0].Hits)
	}
	fieldVals, _ := resp[0].Hits[0].Fields["knowledge_base_name"].([]any)
	if len(fieldVals) != 1 || fieldVals[0] != "docs.example" {
		t.Errorf("expected the runtime knowledge_base_name field to be decoded, got %v", resp[0].Hits[0].Fields)
	}
	if len(resp[0].Buckets) != 1 || resp[0].Buckets[0].Key != "docs.example" {
		t.Errorf("expected a single bucket for docs.example, got %v", resp[0].Buckets)
	}
}
