package toolserver

import (
	"context"
	"fmt"

	"github.com/kbmcp/kbmcp/internal/backend"
)

// fakeBackend is a minimal in-memory backend.Backend for toolserver tests.
type fakeBackend struct {
	collections map[string]backend.Mapping
	docs        map[string][]map[string]any
	nextDocID   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{collections: map[string]backend.Mapping{}, docs: map[string][]map[string]any{}}
}

func (f *fakeBackend) CreateCollection(ctx context.Context, id string, mapping backend.Mapping) error {
	if _, exists := f.collections[id]; exists {
		return fmt.Errorf("collection %q already exists", id)
	}
	f.collections[id] = mapping
	return nil
}

func (f *fakeBackend) DeleteCollection(ctx context.Context, id string) error {
	delete(f.collections, id)
	delete(f.docs, id)
	return nil
}

func (f *fakeBackend) PutMapping(ctx context.Context, id string, meta, runtimeField map[string]any) error {
	m := f.collections[id]
	m.Meta = meta
	m.RuntimeField = runtimeField
	f.collections[id] = m
	return nil
}

func (f *fakeBackend) GetMapping(ctx context.Context, pattern string) (map[string]backend.IndexMeta, error) {
	out := map[string]backend.IndexMeta{}
	for id, m := range f.collections {
		out[id] = backend.IndexMeta{Meta: m.Meta, RuntimeField: m.RuntimeField}
	}
	return out, nil
}

func (f *fakeBackend) Stats(ctx context.Context, pattern string) (map[string]int, error) {
	out := map[string]int{}
	for id, docs := range f.docs {
		out[id] = len(docs)
	}
	return out, nil
}

func (f *fakeBackend) BulkIndex(ctx context.Context, ops []backend.BulkOp) ([]backend.BulkItemError, error) {
	for _, op := range ops {
		f.nextDocID++
		f.docs[op.Index] = append(f.docs[op.Index], op.Source)
	}
	return nil, nil
}

func (f *fakeBackend) UpdateDoc(ctx context.Context, id, docID string, fields map[string]any) error {
	return nil
}

func (f *fakeBackend) DeleteDoc(ctx context.Context, id, docID string) error { return nil }

func (f *fakeBackend) MultiSearch(ctx context.Context, queries []backend.SearchQuery) ([]backend.SearchResponse, error) {
	responses := make([]backend.SearchResponse, len(queries))
	for i, q := range queries {
		var hits []backend.Hit
		for index, docs := range f.docs {
			if index != q.IndexPattern {
				continue
			}
			for j, doc := range docs {
				hits = append(hits, backend.Hit{ID: fmt.Sprintf("%s-%d", index, j), Score: 11, Source: doc})
			}
		}
		responses[i] = backend.SearchResponse{Hits: hits}
	}
	return responses, nil
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

var _ backend.Backend = (*fakeBackend)(nil)
