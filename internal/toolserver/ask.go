package toolserver

import (
	"context"

	"github.com/kbmcp/kbmcp/internal/kb"
)

// QuestionAnswerStyle selects both n_hits and n_fragments for a question
// (§4.4).
type QuestionAnswerStyle string

const (
	StyleConcise       QuestionAnswerStyle = "concise"
	StyleNormal        QuestionAnswerStyle = "normal"
	StyleComprehensive QuestionAnswerStyle = "comprehensive"
	StyleExhaustive    QuestionAnswerStyle = "exhaustive"
)

// ToSearchSize maps a style to the (n_hits, n_fragments) pair used for its
// search (§4.4): concise=1, normal=3, comprehensive=6, exhaustive=9.
// An unrecognized style falls back to StyleNormal's size.
func (s QuestionAnswerStyle) ToSearchSize() int {
	switch s {
	case StyleConcise:
		return 1
	case StyleComprehensive:
		return 6
	case StyleExhaustive:
		return 9
	default:
		return 3
	}
}

// AskServer exposes documentation_available/questions/questions_for_kb
// under the "ask" prefix (§4.4).
type AskServer struct {
	manager *kb.Manager
}

// NewAskServer builds an AskServer bound to the given Manager.
func NewAskServer(manager *kb.Manager) *AskServer {
	return &AskServer{manager: manager}
}

// DocumentationAvailable returns KBs with type == "docs".
func (s *AskServer) DocumentationAvailable(ctx context.Context) ([]kb.KnowledgeBase, error) {
	all, err := s.manager.List(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]kb.KnowledgeBase, 0, len(all))
	for _, k := range all {
		if k.Type == "docs" {
			docs = append(docs, k)
		}
	}
	return docs, nil
}

// Questions searches across all knowledge bases.
func (s *AskServer) Questions(ctx context.Context, questions []string, style QuestionAnswerStyle) ([]kb.SearchOutcome, error) {
	size := style.ToSearchSize()
	return s.manager.Search(ctx, questions, size, size)
}

// QuestionsForKB searches restricted to the given knowledge base names.
func (s *AskServer) QuestionsForKB(ctx context.Context, names, questions []string, style QuestionAnswerStyle) ([]kb.SearchOutcome, error) {
	size := style.ToSearchSize()
	return s.manager.SearchByName(ctx, names, questions, size, size)
}
