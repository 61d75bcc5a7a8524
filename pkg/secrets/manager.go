package secrets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stacklok/mcp-funnel/pkg/logger"
)

// defaultProviderTimeout bounds a single provider's ResolveSecrets call so
// one slow provider cannot block the whole merge indefinitely (SPEC_FULL.md
// §C, grounded on the teacher's Capabilities-scoped provider model).
const defaultProviderTimeout = 5 * time.Second

// Manager composes an ordered provider list per spec.md §4.9: provider
// calls run concurrently but results are merged left-to-right in
// configuration order, so later providers override earlier keys.
// Provider failures are isolated: a failing provider contributes nothing
// and is logged, never aborting the merge. An optional TTL cache can be
// cleared on demand.
type Manager struct {
	mu        sync.Mutex
	providers []Provider
	byName    map[string]struct{}

	providerTimeout time.Duration
	ttl             time.Duration
	cached          map[string]string
	cachedAt        time.Time
	hasCached       bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL enables a resolve cache with the given lifetime. Zero (the
// default) disables caching.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithProviderTimeout overrides defaultProviderTimeout.
func WithProviderTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.providerTimeout = d }
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{byName: make(map[string]struct{}), providerTimeout: defaultProviderTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddProvider appends p to the ordered list. Adding the same named
// instance twice (directly, or once directly and once via a registry) is
// a no-op, so it is counted once.
func (m *Manager) AddProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[p.Name()]; ok {
		return
	}
	m.providers = append(m.providers, p)
	m.byName[p.Name()] = struct{}{}
	m.invalidateLocked()
}

// RemoveProvider drops the named provider, if present.
func (m *Manager) RemoveProvider(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return
	}
	delete(m.byName, name)
	filtered := m.providers[:0]
	for _, p := range m.providers {
		if p.Name() != name {
			filtered = append(filtered, p)
		}
	}
	m.providers = filtered
	m.invalidateLocked()
}

// ResolveSecrets resolves every provider concurrently, then merges their
// contributions in configuration order (later overrides earlier).
func (m *Manager) ResolveSecrets(ctx context.Context) map[string]string {
	m.mu.Lock()
	if m.ttl > 0 && m.hasCached && time.Since(m.cachedAt) < m.ttl {
		snapshot := cloneMap(m.cached)
		m.mu.Unlock()
		return snapshot
	}
	providers := append([]Provider{}, m.providers...)
	timeout := m.providerTimeout
	m.mu.Unlock()

	contributions := make([]map[string]string, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			result, err := p.ResolveSecrets(pctx)
			if err != nil {
				logger.Warnw("secret provider failed, contributing nothing", "provider", p.Name(), "error", err)
				return
			}
			contributions[i] = result
		}(i, p)
	}
	wg.Wait()

	merged := make(map[string]string)
	for _, contribution := range contributions {
		for k, v := range contribution {
			merged[k] = v
		}
	}

	m.mu.Lock()
	if m.ttl > 0 {
		m.cached = cloneMap(merged)
		m.cachedAt = time.Now()
		m.hasCached = true
	}
	m.mu.Unlock()

	return merged
}

// ClearCache drops the current TTL-cached snapshot, forcing the next
// ResolveSecrets to re-query every provider.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked()
}

func (m *Manager) invalidateLocked() {
	m.hasCached = false
	m.cached = nil
}

// ProviderNames returns the configured provider names, sorted, for
// diagnostics.
func (m *Manager) ProviderNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	sort.Strings(names)
	return names
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Lookup adapts a Manager into an envresolver.Lookup, resolving a single
// name out of the full (possibly TTL-cached) snapshot.
func (m *Manager) Lookup(name string) (string, bool) {
	v, ok := m.ResolveSecrets(context.Background())[name]
	return v, ok
}
