// Package kb implements the Knowledge Base Manager: collection lifecycle,
// metadata, document CRUD, and the multi-phrase search fan-out engine
// (§3, §4.1, §4.3).
package kb

// KnowledgeBase is a named collection of documents.
type KnowledgeBase struct {
	Name        string
	Type        string
	DataSource  string
	Description string
	BackendID   string
	DocCount    int
}

// CreateProto is the write shape for Manager.Create.
type CreateProto struct {
	Name        string
	Type        string
	DataSource  string
	Description string
}

// UpdateProto carries the updatable field set for Manager.Update: name and
// description. Nil fields are left unchanged by Manager.Update.
type UpdateProto struct {
	Name        *string
	Description *string
}

// ToCreateProto reflects a KB's current fields back into a CreateProto, the
// basis Manager.Update merges UpdateProto into before rebuilding metadata.
func (kb KnowledgeBase) ToCreateProto() CreateProto {
	return CreateProto{
		Name:        kb.Name,
		Type:        kb.Type,
		DataSource:  kb.DataSource,
		Description: kb.Description,
	}
}

// DocumentProto is the write shape for a single document.
type DocumentProto struct {
	Title   string
	Content string
}

// Document is a single indexed item as read back from a knowledge base.
type Document struct {
	ID                string
	KnowledgeBaseName string
	Title             string
	URL               string
	Score             float64
	Content           []string
}

// PerKBSummary is the per-collection match-count aggregation for one phrase.
type PerKBSummary struct {
	KnowledgeBaseName string
	Matches           int
}

// SearchResult is a successful phrase search outcome.
type SearchResult struct {
	Phrase    string
	Results   []Document
	Summaries []PerKBSummary
}

// SearchResultError is emitted for a phrase with no hits or a phrase-local
// backend error; it never aborts the batch (§4.3).
type SearchResultError struct {
	Phrase string
	Error  string
}

// SearchOutcome tags a single phrase's result as either a SearchResult or a
// SearchResultError (§3 "Tagged variants").
type SearchOutcome struct {
	Result *SearchResult
	Err    *SearchResultError
}

// IsError reports whether this outcome is the error variant.
func (o SearchOutcome) IsError() bool { return o.Err != nil }
