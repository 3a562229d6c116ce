package catalog

import (
	"sort"
	"sync"
)

// Registry maps catalog names to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter, replacing any adapter for the same catalog.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Catalog()] = adapter
}

// Get returns the adapter for catalog, or nil if none is registered.
func (r *Registry) Get(catalog string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[catalog]
}

// Enabled returns the enabled adapters ordered by catalog name.
func (r *Registry) Enabled() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.IsEnabled() {
			adapters = append(adapters, a)
		}
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].Catalog() < adapters[j].Catalog()
	})
	return adapters
}

// InstitutionEnricher returns the adapter for catalog if it is enabled and
// can enrich publications with institutions.
func (r *Registry) InstitutionEnricher(catalog string) (InstitutionEnricher, bool) {
	a := r.Get(catalog)
	if a == nil || !a.IsEnabled() {
		return nil, false
	}
	enricher, ok := a.(InstitutionEnricher)
	return enricher, ok
}
