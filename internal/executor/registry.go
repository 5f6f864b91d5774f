package executor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps task kinds to their executors. Registration happens at
// startup; lookups are concurrent with task submission and execution.
type Registry struct {
	mu     sync.RWMutex
	byKind map[string]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]Executor)}
}

// Register adds an executor, rejecting duplicate kinds.
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return fmt.Errorf("executor is nil")
	}
	kind := exec.Kind()
	if kind == "" {
		return fmt.Errorf("executor kind is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKind[kind]; exists {
		return fmt.Errorf("executor kind %q already registered", kind)
	}
	r.byKind[kind] = exec
	return nil
}

// Lookup returns the executor for kind.
func (r *Registry) Lookup(kind string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.byKind[kind]
	return exec, ok
}

// Kinds returns the sorted list of registered kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
