// Package backend defines the document/vector store contract the
// Knowledge Base Manager is built on (§6.2) and an Elasticsearch
// implementation of it.
package backend

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped into errors from single-document operations when
// the backend reports the document id is absent. Callers re-classify it by
// operation; errors.Is is the check.
var ErrNotFound = errors.New("document not found")

// Mapping describes the index-level configuration the Manager attaches
// to a knowledge base at creation time: its field mapping, its
// query-time runtime fields, and its caller-visible metadata block.
type Mapping struct {
	Meta         map[string]any
	RuntimeField map[string]any
	Properties   map[string]any
}

// IndexMeta is what GetMapping returns per matched index: its _meta block and
// its runtime field definitions, keyed by index name.
type IndexMeta struct {
	Meta         map[string]any
	RuntimeField map[string]any
}

// BulkOp is a single operation in a bulk request: an action line plus
// its associated document source.
type BulkOp struct {
	Index  string
	Action string // "index", "update", "delete"
	DocID  string // empty for "index" (backend assigns one)
	Source map[string]any
}

// BulkItemError reports a single failed item from a bulk request.
type BulkItemError struct {
	DocID string
	Error string
}

// SearchQuery is a single query in a multi-search batch: an index
// pattern to run it against and a backend-native query body.
type SearchQuery struct {
	IndexPattern string
	Body         map[string]any
}

// Hit is one backend search hit. Fields carries the per-hit "fields"
// values (each an array, per the backend's wire shape) — the only place
// runtime fields like knowledge_base_name appear; Source is the stored
// document.
type Hit struct {
	Index     string
	ID        string
	Score     float64
	Source    map[string]any
	Fields    map[string]any
	Highlight map[string][]string
}

// Bucket is one terms-aggregation bucket (§4.3 "aggs").
type Bucket struct {
	Key   string
	Count int
}

// SearchResponse is one multi-search response entry: its hits and its
// per-KB summary aggregation buckets.
type SearchResponse struct {
	Hits    []Hit
	Buckets []Bucket
}

// Backend is the capability set the Knowledge Base Manager requires of
// its document/vector store (§6.2).
type Backend interface {
	CreateCollection(ctx context.Context, id string, mapping Mapping) error
	DeleteCollection(ctx context.Context, id string) error
	PutMapping(ctx context.Context, id string, meta, runtimeField map[string]any) error
	GetMapping(ctx context.Context, pattern string) (map[string]IndexMeta, error)
	Stats(ctx context.Context, pattern string) (map[string]int, error)
	BulkIndex(ctx context.Context, ops []BulkOp) ([]BulkItemError, error)
	UpdateDoc(ctx context.Context, id, docID string, fields map[string]any) error
	DeleteDoc(ctx context.Context, id, docID string) error
	MultiSearch(ctx context.Context, queries []SearchQuery) ([]SearchResponse, error)
	Ping(ctx context.Context) error
}
