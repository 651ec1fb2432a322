package plugins

import (
	"errors"
	"path"
	"sort"
	"sync"
)

// EntryFileName is probed under a plugin name before the bare name.
const EntryFileName = "plugin"

// ErrNotFound is returned by a Resolver that has no module for a name.
var ErrNotFound = errors.New("plugin module not found")

// Resolver maps a plugin name to a loaded module.
type Resolver interface {
	Resolve(name string) (*Module, error)
}

// candidates lists the names probed for a plugin, entry file first.
func candidates(name string) []string {
	return []string{path.Join(name, EntryFileName), name}
}

// Registry holds modules registered in process.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds or replaces the module for name.
func (r *Registry) Register(name string, module *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = module
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up "<name>/plugin", then name.
func (r *Registry) Resolve(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, candidate := range candidates(name) {
		if m, ok := r.modules[candidate]; ok {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

// ChainResolver tries each resolver in order. A resolver that fails with
// anything other than ErrNotFound stops the search.
type ChainResolver []Resolver

// Resolve implements Resolver.
func (c ChainResolver) Resolve(name string) (*Module, error) {
	for _, r := range c {
		m, err := r.Resolve(name)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
