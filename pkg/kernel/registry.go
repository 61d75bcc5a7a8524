package kernel

import (
	"sync"

	"github.com/stacklok/mcp-funnel/pkg/overrides"
)

// toolRegistry is the ProxyKernel's `fullName -> entry` map (spec.md
// §4.14). Refreshes replace an entire server's entries atomically so a
// reader never observes a half-updated server.
type toolRegistry struct {
	mu      sync.Mutex
	entries map[string]ToolRegistryEntry
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{entries: make(map[string]ToolRegistryEntry)}
}

// replaceServer drops every existing entry owned by server and installs
// fresh ones in their place.
func (r *toolRegistry) replaceServer(server string, fresh []ToolRegistryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for fullName, e := range r.entries {
		if e.Server == server {
			delete(r.entries, fullName)
		}
	}
	for _, e := range fresh {
		r.entries[FullName(e.Server, e.OriginalName)] = e
	}
}

// put installs or replaces a single entry (used for core tools).
func (r *toolRegistry) put(e ToolRegistryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[FullName(e.Server, e.OriginalName)] = e
}

func (r *toolRegistry) get(fullName string) (ToolRegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fullName]
	return e, ok
}

// list returns every entry currently registered, regardless of
// enabled/visibility — callers filter.
func (r *toolRegistry) list() []ToolRegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ToolRegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// buildEntries turns one server's raw tools/list result into registry
// entries, applying override post-processing and the expose/hide filter
// to compute Enabled.
func buildEntries(server string, tools []wireToolDefinition, overridesMgr *overrides.Manager, filter *toolFilter) []ToolRegistryEntry {
	entries := make([]ToolRegistryEntry, 0, len(tools))
	for _, t := range tools {
		def := overrides.ToolDefinition{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Meta:        t.Meta,
		}
		fullName := FullName(server, t.Name)
		if overridesMgr != nil {
			def = overridesMgr.Apply(fullName, t.Name, def)
		}
		entries = append(entries, ToolRegistryEntry{
			OriginalName: t.Name,
			Server:       server,
			Definition:   def,
			Enabled:      filter.allows(server, fullName),
		})
	}
	return entries
}
