package kb

import (
	"context"
	"fmt"

	"github.com/kbmcp/kbmcp/internal/backend"
)

// fakeBackend is an in-memory Backend stand-in for Manager/search tests.
type fakeBackend struct {
	collections map[string]backend.Mapping
	docs        map[string][]fakeDoc
	nextDocID   int
	searchFunc  func(queries []backend.SearchQuery) ([]backend.SearchResponse, error)
}

type fakeDoc struct {
	id     string
	source map[string]any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		collections: map[string]backend.Mapping{},
		docs:        map[string][]fakeDoc{},
	}
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
	m, ok := f.collections[id]
	if !ok {
		return fmt.Errorf("collection %q not found", id)
	}
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
		id := fmt.Sprintf("doc-%d", f.nextDocID)
		f.docs[op.Index] = append(f.docs[op.Index], fakeDoc{id: id, source: op.Source})
	}
	return nil, nil
}

func (f *fakeBackend) UpdateDoc(ctx context.Context, id, docID string, fields map[string]any) error {
	for i, d := range f.docs[id] {
		if d.id == docID {
			for k, v := range fields {
				f.docs[id][i].source[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("document %q: %w", docID, backend.ErrNotFound)
}

func (f *fakeBackend) DeleteDoc(ctx context.Context, id, docID string) error {
	docs := f.docs[id]
	for i, d := range docs {
		if d.id == docID {
			f.docs[id] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("document %q: %w", docID, backend.ErrNotFound)
}

func (f *fakeBackend) MultiSearch(ctx context.Context, queries []backend.SearchQuery) ([]backend.SearchResponse, error) {
	if f.searchFunc != nil {
		return f.searchFunc(queries)
	}
	return make([]backend.SearchResponse, len(queries)), nil
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

var _ backend.Backend = (*fakeBackend)(nil)
