package overrides

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

type compiledWildcard struct {
	pattern  string
	re       *regexp.Regexp
	override Override
}

// Manager matches tool names against an ordered set of exact and wildcard
// override rules and applies the winning rule to a ToolDefinition.
type Manager struct {
	exact    map[string]Override
	wildcard []compiledWildcard

	mu    sync.Mutex
	cache map[string]ToolDefinition
}

// NewManager compiles entries in order. Wildcard entries (containing `*`)
// keep their config order for first-match-wins; exact entries go in a map
// since exact match always wins regardless of position.
func NewManager(entries []Entry) (*Manager, error) {
	m := &Manager{
		exact: make(map[string]Override),
		cache: make(map[string]ToolDefinition),
	}
	for _, e := range entries {
		if !strings.Contains(e.Key, "*") {
			m.exact[e.Key] = e.Override
			continue
		}
		re, err := compileWildcard(e.Key)
		if err != nil {
			return nil, fmt.Errorf("override pattern %q: %w", e.Key, err)
		}
		m.wildcard = append(m.wildcard, compiledWildcard{pattern: e.Key, re: re, override: e.Override})
	}
	return m, nil
}

func (m *Manager) lookup(toolName string) (Override, bool) {
	if o, ok := m.exact[toolName]; ok {
		return o, true
	}
	for _, w := range m.wildcard {
		if w.re.MatchString(toolName) {
			return w.override, true
		}
	}
	return Override{}, false
}

// Apply returns def with its matching override rule (if any) applied.
// Results are cached by cacheKey(fullToolName, toolName, def.Description).
func (m *Manager) Apply(fullToolName, toolName string, def ToolDefinition) ToolDefinition {
	key := cacheKey(fullToolName, toolName, def.Description)

	m.mu.Lock()
	if cached, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	override, ok := m.lookup(toolName)
	result := def
	if ok {
		result = applyOverride(def, override)
	}

	m.mu.Lock()
	m.cache[key] = result
	m.mu.Unlock()
	return result
}

// ClearCache drops every cached result; the next Apply call for any tool
// recomputes from its override rule.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]ToolDefinition)
}

func cacheKey(fullToolName, toolName, description string) string {
	d := description
	if len(d) > 50 {
		d = d[:50]
	}
	return fullToolName + "::" + toolName + "::" + d
}

func applyOverride(def ToolDefinition, o Override) ToolDefinition {
	result := def
	if o.Name != nil {
		result.Name = *o.Name
	}
	if o.Title != nil {
		result.Title = *o.Title
	}
	if o.Description != nil {
		result.Description = *o.Description
	}
	if len(o.Annotations) > 0 {
		result.Meta = mergeAnnotations(def.Meta, o.Annotations)
	}
	if o.InputSchema != nil {
		result.InputSchema = mergeInputSchema(o.InputSchema.Strategy, def.InputSchema, o.InputSchema.Schema)
	}
	if len(o.PropertyOverrides) > 0 {
		result.InputSchema = applyPropertyOverrides(result.InputSchema, o.PropertyOverrides)
	}
	return result
}
