package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbmcp/kbmcp/internal/backend"
	"github.com/kbmcp/kbmcp/internal/kberrors"
)

// docMapping is the standard document mapping (§4.1): body & headings are
// semantic-vector fields, url/title/path parts are keyword-indexed text.
var docMapping = map[string]any{
	"title": map[string]any{
		"type": "text",
		"fields": map[string]any{
			"keyword": map[string]any{"type": "keyword"},
		},
	},
	"headings": map[string]any{"type": "semantic_text"},
	"body":     map[string]any{"type": "semantic_text"},
	"url":      map[string]any{"type": "keyword"},
	"@timestamp": map[string]any{
		"type": "date",
	},
}

// Manager is the Knowledge Base Manager (§4.1): the abstraction over a
// Backend that enforces the collection model, metadata, per-collection
// runtime fields, multi-phrase search semantics, and document lifecycle.
type Manager struct {
	backend     backend.Backend
	indexPrefix string
}

// NewManager builds a Manager bound to the given Backend. indexPrefix is the
// base index prefix (§6.5 `base_index_prefix`, default "kbmcp"); the index
// pattern it enumerates is "<prefix>-*".
func NewManager(be backend.Backend, indexPrefix string) *Manager {
	return &Manager{backend: be, indexPrefix: indexPrefix}
}

func (m *Manager) indexPattern() string {
	return m.indexPrefix + "-*"
}

// List enumerates all KBs whose backend_id matches "<prefix>-*", joining
// metadata and doc-count queries, sorted by name case-insensitively (§4.1).
func (m *Manager) List(ctx context.Context) ([]KnowledgeBase, error) {
	mappings, err := m.backend.GetMapping(ctx, m.indexPattern())
	if err != nil {
		return nil, kberrors.New(kberrors.Retrieval, "list knowledge bases", err)
	}

	counts, err := m.backend.Stats(ctx, m.indexPattern())
	if err != nil {
		return nil, kberrors.New(kberrors.Retrieval, "list knowledge bases", err)
	}

	kbs := make([]KnowledgeBase, 0, len(mappings))
	for index, meta := range mappings {
		block, _ := meta.Meta["knowledge_base"].(map[string]any)
		kbs = append(kbs, KnowledgeBase{
			Name:        stringField(block, "name"),
			Type:        stringField(block, "type"),
			DataSource:  stringField(block, "data_source"),
			Description: stringField(block, "description"),
			BackendID:   index,
			DocCount:    counts[index],
		})
	}

	sort.Slice(kbs, func(i, j int) bool {
		return strings.ToLower(kbs[i].Name) < strings.ToLower(kbs[j].Name)
	})

	return kbs, nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Create constructs backend_id = "<prefix>-<type>.<S(data_source)>-<rand8>",
// fails AlreadyExists if proto.Name collides with an existing KB, and
// creates the backend collection with the standard mapping, a
// _meta.knowledge_base block, and a runtime knowledge_base_name field
// (§4.1).
func (m *Manager) Create(ctx context.Context, proto CreateProto) (KnowledgeBase, error) {
	existing, err := m.List(ctx)
	if err != nil {
		return KnowledgeBase{}, err
	}
	for _, kb := range existing {
		if kb.Name == proto.Name {
			return KnowledgeBase{}, kberrors.New(kberrors.AlreadyExists, "create knowledge base",
				fmt.Errorf("knowledge base with name %q already exists", proto.Name))
		}
	}

	indexName := fmt.Sprintf("%s-%s.%s-%s", m.indexPrefix, proto.Type, Sanitize(proto.DataSource), randomHex8())

	meta := metadataBlock(proto)
	runtimeField := runtimeFieldFor(proto.Name)

	mapping := backend.Mapping{
		Meta:         meta,
		RuntimeField: runtimeField,
		Properties:   docMapping,
	}

	if err := m.backend.CreateCollection(ctx, indexName, mapping); err != nil {
		return KnowledgeBase{}, kberrors.New(kberrors.Creation,
			fmt.Sprintf("creating knowledge base index %q", indexName), err)
	}

	return KnowledgeBase{
		Name:        proto.Name,
		Type:        proto.Type,
		DataSource:  proto.DataSource,
		Description: proto.Description,
		BackendID:   indexName,
		DocCount:    0,
	}, nil
}

func metadataBlock(proto CreateProto) map[string]any {
	return map[string]any{
		"knowledge_base": map[string]any{
			"name":        proto.Name,
			"data_source": proto.DataSource,
			"description": proto.Description,
			"type":        proto.Type,
		},
	}
}

// runtimeFieldFor builds the knowledge_base_name runtime field script
// (§4.1): it emits the KB's name with embedded '"' escaped.
func runtimeFieldFor(name string) map[string]any {
	escaped := strings.ReplaceAll(name, `"`, `\"`)
	return map[string]any{
		"knowledge_base_name": map[string]any{
			"type":   "keyword",
			"script": fmt.Sprintf(`emit("%s")`, escaped),
		},
	}
}

// randomHex8 returns 8 random lowercase hex characters for the backend_id
// suffix (§4.1 invariant 2), taken from a fresh UUID's first segment.
func randomHex8() string {
	id := uuid.New().String()
	return id[:8]
}

// Update writes a new _meta block and runtime field reflecting the merged
// fields (name, description); it must not touch the data mapping (§4.1).
func (m *Manager) Update(ctx context.Context, existing KnowledgeBase, update UpdateProto) error {
	proto := existing.ToCreateProto()
	if update.Name != nil {
		proto.Name = *update.Name
	}
	if update.Description != nil {
		proto.Description = *update.Description
	}

	meta := metadataBlock(proto)
	runtimeField := runtimeFieldFor(proto.Name)

	if err := m.backend.PutMapping(ctx, existing.BackendID, meta, runtimeField); err != nil {
		return kberrors.New(kberrors.Update,
			fmt.Sprintf("updating knowledge base metadata for %q", existing.BackendID), err)
	}

	return nil
}

// Delete destroys the backend collection (§4.1).
func (m *Manager) Delete(ctx context.Context, existing KnowledgeBase) error {
	if err := m.backend.DeleteCollection(ctx, existing.BackendID); err != nil {
		return kberrors.New(kberrors.Deletion,
			fmt.Sprintf("deleting knowledge base %q", existing.BackendID), err)
	}
	return nil
}

// GetByName does a linear scan of List, raising NotFound if zero matches or
// NonUnique if more than one (§4.1).
func (m *Manager) GetByName(ctx context.Context, name string) (KnowledgeBase, error) {
	kbs, err := m.List(ctx)
	if err != nil {
		return KnowledgeBase{}, err
	}

	var matches []KnowledgeBase
	for _, kb := range kbs {
		if kb.Name == name {
			matches = append(matches, kb)
		}
	}

	switch len(matches) {
	case 0:
		return KnowledgeBase{}, kberrors.New(kberrors.NotFound, "get knowledge base by name",
			fmt.Errorf("no knowledge base named %q", name))
	case 1:
		return matches[0], nil
	default:
		return KnowledgeBase{}, kberrors.New(kberrors.NonUnique, "get knowledge base by name",
			fmt.Errorf("%d knowledge bases named %q", len(matches), name))
	}
}

// TryGetByName is GetByName but returns (KnowledgeBase{}, false, nil)
// instead of raising NotFound/NonUnique.
func (m *Manager) TryGetByName(ctx context.Context, name string) (KnowledgeBase, bool, error) {
	kb, err := m.GetByName(ctx, name)
	if err != nil {
		if kberrors.Is(err, kberrors.NotFound) {
			return KnowledgeBase{}, false, nil
		}
		return KnowledgeBase{}, false, err
	}
	return kb, true, nil
}

// GetByBackendID looks a KB up by its backend_id.
func (m *Manager) GetByBackendID(ctx context.Context, backendID string) (KnowledgeBase, error) {
	kbs, err := m.List(ctx)
	if err != nil {
		return KnowledgeBase{}, err
	}
	for _, kb := range kbs {
		if kb.BackendID == backendID {
			return kb, nil
		}
	}
	return KnowledgeBase{}, kberrors.New(kberrors.NotFound, "get knowledge base by backend id",
		fmt.Errorf("no knowledge base with backend id %q", backendID))
}

// InsertDocuments bulk-inserts docs into kb. A zero-doc call is a no-op,
// not an error. Fails if the backend reports any item failure (§4.1).
func (m *Manager) InsertDocuments(ctx context.Context, existing KnowledgeBase, docs []DocumentProto) error {
	if len(docs) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	ops := make([]backend.BulkOp, 0, len(docs))
	for _, d := range docs {
		ops = append(ops, backend.BulkOp{
			Index:  existing.BackendID,
			Action: "index",
			Source: map[string]any{
				"@timestamp": now,
				"title":      d.Title,
				"body":       d.Content,
			},
		})
	}

	itemErrors, err := m.backend.BulkIndex(ctx, ops)
	if err != nil {
		return kberrors.New(kberrors.Creation,
			fmt.Sprintf("inserting documents into knowledge base %q (%s)", existing.Name, existing.BackendID), err)
	}
	if len(itemErrors) > 0 {
		return kberrors.New(kberrors.Creation,
			fmt.Sprintf("inserting documents into knowledge base %q (%s)", existing.Name, existing.BackendID),
			fmt.Errorf("%d of %d documents failed: %v", len(itemErrors), len(docs), itemErrors))
	}

	return nil
}

// UpdateDocument updates a single document by id, surfacing NotFound if the
// id is absent.
func (m *Manager) UpdateDocument(ctx context.Context, existing KnowledgeBase, docID string, fields map[string]any) error {
	if err := m.backend.UpdateDoc(ctx, existing.BackendID, docID, fields); err != nil {
		return kberrors.New(docErrKind(err, kberrors.Update),
			fmt.Sprintf("updating document %q in knowledge base %q", docID, existing.Name), err)
	}
	return nil
}

// DeleteDocument deletes a single document by id, surfacing NotFound if the
// id is absent.
func (m *Manager) DeleteDocument(ctx context.Context, existing KnowledgeBase, docID string) error {
	if err := m.backend.DeleteDoc(ctx, existing.BackendID, docID); err != nil {
		return kberrors.New(docErrKind(err, kberrors.Deletion),
			fmt.Sprintf("deleting document %q from knowledge base %q", docID, existing.Name), err)
	}
	return nil
}

// docErrKind classifies a single-document backend error: an absent id is
// NotFound, anything else keeps the operation's kind.
func docErrKind(err error, opKind kberrors.Kind) kberrors.Kind {
	if errors.Is(err, backend.ErrNotFound) {
		return kberrors.NotFound
	}
	return opKind
}

// GetRecentDocuments returns up to n documents ordered by @timestamp
// descending (§4.1).
func (m *Manager) GetRecentDocuments(ctx context.Context, existing KnowledgeBase, n int) ([]Document, error) {
	query := map[string]any{
		"query":   map[string]any{"match_all": map[string]any{}},
		"_source": []string{"title", "url", "body"},
		"size":    n,
		"sort":    []any{map[string]any{"@timestamp": map[string]any{"order": "desc"}}},
	}

	responses, err := m.backend.MultiSearch(ctx, []backend.SearchQuery{
		{IndexPattern: existing.BackendID, Body: query},
	})
	if err != nil {
		return nil, kberrors.New(kberrors.Retrieval,
			fmt.Sprintf("getting recent documents from knowledge base %q", existing.Name), err)
	}
	if len(responses) == 0 {
		return nil, nil
	}

	docs := make([]Document, 0, len(responses[0].Hits))
	for _, hit := range responses[0].Hits {
		docs = append(docs, hitToDocument(existing.Name, hit))
	}
	return docs, nil
}
