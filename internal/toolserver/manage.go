package toolserver

import (
	"context"

	"github.com/kbmcp/kbmcp/internal/kb"
)

// ManageServer exposes create/get/delete/update as tools under the
// "manage" prefix (§4.4).
type ManageServer struct {
	manager *kb.Manager
}

// NewManageServer builds a ManageServer bound to the given Manager.
func NewManageServer(manager *kb.Manager) *ManageServer {
	return &ManageServer{manager: manager}
}

func (s *ManageServer) Create(ctx context.Context, proto kb.CreateProto) (kb.KnowledgeBase, error) {
	return s.manager.Create(ctx, proto)
}

func (s *ManageServer) GetByBackendID(ctx context.Context, backendID string) (kb.KnowledgeBase, error) {
	return s.manager.GetByBackendID(ctx, backendID)
}

func (s *ManageServer) GetByName(ctx context.Context, name string) (kb.KnowledgeBase, error) {
	return s.manager.GetByName(ctx, name)
}

func (s *ManageServer) DeleteByBackendID(ctx context.Context, backendID string) error {
	existing, err := s.manager.GetByBackendID(ctx, backendID)
	if err != nil {
		return err
	}
	return s.manager.Delete(ctx, existing)
}

func (s *ManageServer) DeleteByName(ctx context.Context, name string) error {
	existing, err := s.manager.GetByName(ctx, name)
	if err != nil {
		return err
	}
	return s.manager.Delete(ctx, existing)
}

func (s *ManageServer) UpdateByBackendID(ctx context.Context, backendID string, update kb.UpdateProto) error {
	existing, err := s.manager.GetByBackendID(ctx, backendID)
	if err != nil {
		return err
	}
	return s.manager.Update(ctx, existing, update)
}

func (s *ManageServer) UpdateByName(ctx context.Context, name string, update kb.UpdateProto) error {
	existing, err := s.manager.GetByName(ctx, name)
	if err != nil {
		return err
	}
	return s.manager.Update(ctx, existing, update)
}
