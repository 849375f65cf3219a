package toolserver

import (
	"context"
	"fmt"
	"sync"
)

// ToolFunc is a registered tool's handler: it takes the raw argument map a
// caller supplied and returns a result value or an error. The handlers
// Mount registers return text already rendered by render.go, or nil for
// operations with no result; the transport layer prints the value as is.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Registry maps a fully-qualified tool name to its handler (§4.5).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]ToolFunc{}}
}

// Register adds a tool under name. Registering the same name twice panics:
// it signals a wiring bug, not a runtime condition.
func (r *Registry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("toolserver: tool %q already registered", name))
	}
	r.tools[name] = fn
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Call invokes the named tool. Calling an unregistered name reports an
// error rather than panicking, since the name may have come from a client.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return fn(ctx, args)
}
