package kb

import (
	"context"
	"testing"

	"github.com/kbmcp/kbmcp/internal/backend"
	"github.com/kbmcp/kbmcp/internal/kberrors"
)

func TestManager_CreateAndGetByName(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")
	ctx := context.Background()

	created, err := m.Create(ctx, CreateProto{
		Name:       "docs.example",
		Type:       "docs",
		DataSource: "https://example.com/docs/",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.GetByName(ctx, "docs.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BackendID != created.BackendID {
		t.Errorf("expected GetByName to return the created KB, got backend_id %q want %q", got.BackendID, created.BackendID)
	}
}

func TestManager_Create_RejectsDuplicateName(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")
	ctx := context.Background()

	proto := CreateProto{Name: "docs.example", Type: "docs", DataSource: "https://example.com/"}
	if _, err := m.Create(ctx, proto); err != nil {
		t.Fatalf("unexpected error on first create: %v", err)
	}

	_, err := m.Create(ctx, proto)
	if !kberrors.Is(err, kberrors.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestManager_GetByName_NotFound(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")

	_, err := m.GetByName(context.Background(), "missing")
	if !kberrors.Is(err, kberrors.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestManager_TryGetByName_AbsentReturnsFalse(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")

	_, ok, err := m.TryGetByName(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for an absent knowledge base")
	}
}

func TestManager_List_SortsCaseInsensitively(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")
	ctx := context.Background()

	for _, name := range []string{"Zebra", "apple", "Mango"} {
		if _, err := m.Create(ctx, CreateProto{Name: name, Type: "docs", DataSource: "https://" + name + ".test/"}); err != nil {
			t.Fatalf("unexpected error creating %q: %v", name, err)
		}
	}

	kbs, err := m.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kbs) != 3 {
		t.Fatalf("expected 3 knowledge bases, got %d", len(kbs))
	}
	want := []string{"apple", "Mango", "Zebra"}
	for i, kb := range kbs {
		if kb.Name != want[i] {
			t.Errorf("position %d: got %q, want %q", i, kb.Name, want[i])
		}
	}
}

func TestManager_Update_RebuildsMetadataNotMapping(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, "kbmcp")
	ctx := context.Background()

	created, err := m.Create(ctx, CreateProto{Name: "old-name", Type: "docs", DataSource: "https://example.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newName := "new-name"
	if err := m.Update(ctx, created, UpdateProto{Name: &newName}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.GetByName(ctx, "new-name")
	if err != nil {
		t.Fatalf("expected to find knowledge base under its new name: %v", err)
	}
	if got.BackendID != created.BackendID {
		t.Errorf("expected backend_id to be unchanged across update, got %q want %q", got.BackendID, created.BackendID)
	}
}

func TestManager_InsertDocuments_EmptyIsNoOp(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, "kbmcp")
	ctx := context.Background()

	kb, err := m.Create(ctx, CreateProto{Name: "docs.example", Type: "docs", DataSource: "https://example.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.InsertDocuments(ctx, kb, nil); err != nil {
		t.Fatalf("expected no-op for empty document slice, got %v", err)
	}
	if len(be.docs[kb.BackendID]) != 0 {
		t.Errorf("expected no documents inserted, got %d", len(be.docs[kb.BackendID]))
	}
}

func TestManager_DeleteThenGetByName_NotFound(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")
	ctx := context.Background()

	created, err := m.Create(ctx, CreateProto{Name: "py-docs", Type: "docs", DataSource: "https://docs.python.org/3/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Delete(ctx, created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = m.GetByName(ctx, "py-docs")
	if !kberrors.Is(err, kberrors.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestManager_DocumentOps_AbsentIDSurfacesNotFound(t *testing.T) {
	m := NewManager(newFakeBackend(), "kbmcp")
	ctx := context.Background()

	kb, err := m.Create(ctx, CreateProto{Name: "docs.example", Type: "docs", DataSource: "https://example.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.UpdateDocument(ctx, kb, "missing-id", map[string]any{"title": "t"}); !kberrors.Is(err, kberrors.NotFound) {
		t.Errorf("expected NotFound updating an absent document, got %v", err)
	}
	if err := m.DeleteDocument(ctx, kb, "missing-id"); !kberrors.Is(err, kberrors.NotFound) {
		t.Errorf("expected NotFound deleting an absent document, got %v", err)
	}
}

func TestManager_GetRecentDocuments_RoundTrip(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, "kbmcp")
	ctx := context.Background()

	kb, err := m.Create(ctx, CreateProto{Name: "docs.example", Type: "docs", DataSource: "https://example.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.InsertDocuments(ctx, kb, []DocumentProto{{Title: "t1", Content: "c1"}, {Title: "t2", Content: "c2"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	be.searchFunc = func(queries []backend.SearchQuery) ([]backend.SearchResponse, error) {
		return []backend.SearchResponse{{
			Hits: []backend.Hit{
				{ID: "doc-2", Score: 1, Source: map[string]any{"title": "t2", "body": "c2"}},
				{ID: "doc-1", Score: 1, Source: map[string]any{"title": "t1", "body": "c1"}},
			},
		}}, nil
	}

	docs, err := m.GetRecentDocuments(ctx, kb, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "doc-2" || docs[1].ID != "doc-1" {
		t.Errorf("expected insert-time descending order from the backend, got %+v", docs)
	}
}
