package toolserver

import (
	"fmt"
	"sync"

	"github.com/kbmcp/kbmcp/internal/kb"
)

// ProjectContext is the request-scoped state the Remember sub-server binds
// the current caller to (§3, §4.4): the active project's name and memory
// knowledge base. It starts empty and is populated by SetProject.
type ProjectContext struct {
	mu            sync.Mutex
	projectName   string
	knowledgeBase kb.KnowledgeBase
	isSet         bool
}

// Set establishes the active project.
func (p *ProjectContext) Set(name string, knowledgeBase kb.KnowledgeBase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projectName = name
	p.knowledgeBase = knowledgeBase
	p.isSet = true
}

// ProjectName returns the active project's name, or an error if unset.
func (p *ProjectContext) ProjectName() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isSet {
		return "", errProjectUnset
	}
	return p.projectName, nil
}

// KnowledgeBase returns the active project's memory KB, or an error if
// unset.
func (p *ProjectContext) KnowledgeBase() (kb.KnowledgeBase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isSet {
		return kb.KnowledgeBase{}, errProjectUnset
	}
	return p.knowledgeBase, nil
}

var errProjectUnset = fmt.Errorf("no project set: call memory_set_project first")

// ProjectContextStore hands out one ProjectContext per session key. Every
// other Remember operation is scoped by the same key the caller's
// memory_set_project call used, so state never leaks across sessions
// (§3 "never persisted", §5 "one instance per request").
type ProjectContextStore struct {
	mu       sync.Mutex
	contexts map[string]*ProjectContext
}

// NewProjectContextStore builds an empty store.
func NewProjectContextStore() *ProjectContextStore {
	return &ProjectContextStore{contexts: map[string]*ProjectContext{}}
}

// Get returns the ProjectContext for key, creating one on first use.
func (s *ProjectContextStore) Get(key string) *ProjectContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.contexts[key]; ok {
		return ctx
	}
	ctx := &ProjectContext{}
	s.contexts[key] = ctx
	return ctx
}
