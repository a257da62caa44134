// Package engine holds the conversion engines and the name-based registry the
// orchestrator dispatches through.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spherical/smartpdf/internal/domain"
)

// Registry maps engine names to engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]domain.Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]domain.Engine)}
}

// Register adds an engine under its own name.
func (r *Registry) Register(e domain.Engine) error {
	return r.RegisterAs(e.Name(), e)
}

// RegisterAs adds an engine under an explicit name. Names are unique.
func (r *Registry) RegisterAs(name string, e domain.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return domain.ValidationError("engine name is empty", nil)
	}
	if _, exists := r.engines[name]; exists {
		return domain.ValidationError(fmt.Sprintf("engine %q already registered", name), nil)
	}
	r.engines[name] = e
	return nil
}

// Get looks up an engine by name.
func (r *Registry) Get(name string) (domain.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEngine, name)
	}
	return e, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Probe reports the availability of every registered engine. Engines
// without external dependencies are always available.
func (r *Registry) Probe() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]error, len(r.engines))
	for name, e := range r.engines {
		if p, ok := e.(domain.Prober); ok {
			out[name] = p.Available()
		} else {
			out[name] = nil
		}
	}
	return out
}
