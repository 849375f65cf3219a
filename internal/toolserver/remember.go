package toolserver

import (
	"context"
	"fmt"

	"github.com/kbmcp/kbmcp/internal/kb"
)

const memoryRecallLastDefault = 10

// Memory is the write shape for a single encoded memory (§4.4).
type Memory struct {
	Title   string
	Content string
}

// MemoryInitResponse is what SetProject returns (§4.4, §8 round-trip).
type MemoryInitResponse struct {
	MemoryCount int
	Memories    []kb.Document
}

// RememberServer exposes set_project/get_project_name/encoding/encodings/
// recall/recall_last/update_encoding/delete_encoding under the "memory"
// prefix (§4.4). Every operation but SetProject reads its KB from the
// caller's ProjectContext and fails if it is unset.
type RememberServer struct {
	manager *kb.Manager
}

// NewRememberServer builds a RememberServer bound to the given Manager.
func NewRememberServer(manager *kb.Manager) *RememberServer {
	return &RememberServer{manager: manager}
}

// SetProject establishes or creates a memory KB named exactly projectName
// and records it in pc. If returnMemories is set, it also returns the
// project's most recent memories.
func (s *RememberServer) SetProject(ctx context.Context, pc *ProjectContext, projectName string, returnMemories bool) (MemoryInitResponse, error) {
	existing, found, err := s.manager.TryGetByName(ctx, projectName)
	if err != nil {
		return MemoryInitResponse{}, err
	}

	if !found {
		existing, err = s.manager.Create(ctx, kb.CreateProto{
			Name:       projectName,
			Type:       "memory",
			DataSource: fmt.Sprintf("Workspace-`%s`", projectName),
		})
		if err != nil {
			return MemoryInitResponse{}, err
		}
	}

	pc.Set(projectName, existing)

	if !returnMemories {
		return MemoryInitResponse{MemoryCount: existing.DocCount}, nil
	}

	memories, err := s.manager.GetRecentDocuments(ctx, existing, memoryRecallLastDefault)
	if err != nil {
		return MemoryInitResponse{}, err
	}
	if memories == nil {
		memories = []kb.Document{}
	}

	return MemoryInitResponse{MemoryCount: existing.DocCount, Memories: memories}, nil
}

// GetProjectName returns the active project's name.
func (s *RememberServer) GetProjectName(pc *ProjectContext) (string, error) {
	return pc.ProjectName()
}

// Encoding records a single memory.
func (s *RememberServer) Encoding(ctx context.Context, pc *ProjectContext, title, content string) error {
	return s.Encodings(ctx, pc, []Memory{{Title: title, Content: content}})
}

// Encodings records a batch of memories.
func (s *RememberServer) Encodings(ctx context.Context, pc *ProjectContext, memories []Memory) error {
	target, err := pc.KnowledgeBase()
	if err != nil {
		return err
	}

	docs := make([]kb.DocumentProto, 0, len(memories))
	for _, m := range memories {
		docs = append(docs, kb.DocumentProto{Title: m.Title, Content: m.Content})
	}

	return s.manager.InsertDocuments(ctx, target, docs)
}

// Recall searches the active project's memory KB for the given questions.
func (s *RememberServer) Recall(ctx context.Context, pc *ProjectContext, questions []string) ([]kb.SearchOutcome, error) {
	target, err := pc.KnowledgeBase()
	if err != nil {
		return nil, err
	}
	return s.manager.SearchByName(ctx, []string{target.Name}, questions, 5, 5)
}

// RecallLast returns the active project's most recent memories.
func (s *RememberServer) RecallLast(ctx context.Context, pc *ProjectContext, count int) ([]kb.Document, error) {
	target, err := pc.KnowledgeBase()
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = memoryRecallLastDefault
	}
	return s.manager.GetRecentDocuments(ctx, target, count)
}

// UpdateEncoding updates a single memory by id.
func (s *RememberServer) UpdateEncoding(ctx context.Context, pc *ProjectContext, documentID, title, content string) error {
	target, err := pc.KnowledgeBase()
	if err != nil {
		return err
	}
	return s.manager.UpdateDocument(ctx, target, documentID, map[string]any{"title": title, "body": content})
}

// DeleteEncoding deletes a single memory by id.
func (s *RememberServer) DeleteEncoding(ctx context.Context, pc *ProjectContext, documentID string) error {
	target, err := pc.KnowledgeBase()
	if err != nil {
		return err
	}
	return s.manager.DeleteDocument(ctx, target, documentID)
}
