package secrets

import "sync"

// Registry lets named providers be constructed once and shared across
// Managers, per spec.md §4.9. Manager.AddProvider already dedups by
// Provider.Name(), so a provider registered here and also added directly
// to a Manager is counted once as long as the same instance is used both
// times — Registry.Get always returns the same pointer it stored.
type Registry struct {
	mu        sync.Mutex
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register stores p under p.Name(), replacing any previous entry of the
// same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the named provider, or nil if it was never registered.
func (r *Registry) Get(name string) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.providers[name]
}

// Names returns every registered provider name.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
