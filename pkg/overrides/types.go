// Package overrides implements spec.md §4.12 ToolOverrideManager: per-tool
// name/title/description/annotation and inputSchema overrides, matched by
// exact name or `*`-wildcard pattern, applied to upstream tool definitions
// before they are exposed to inbound clients. Styled after pkg/secrets'
// manager/cache shape — an ordered rule list, a small cache keyed on a
// cheap fingerprint, and an explicit clearCache().
package overrides

// ToolDefinition is the subset of an MCP tool definition that overrides can
// touch. Server/fullName bookkeeping lives in the kernel's tool registry;
// this package only ever sees and returns these fields.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
	Meta        map[string]any `json:"_meta,omitempty"` // the tool's "_meta" object, e.g. {"annotations": {...}}
}

// MergeStrategy selects how an override's inputSchema combines with the
// upstream tool's inputSchema.
type MergeStrategy string

// The three spec.md §4.12 inputSchema merge strategies.
const (
	StrategyReplace   MergeStrategy = "replace"
	StrategyMerge     MergeStrategy = "merge"
	StrategyDeepMerge MergeStrategy = "deep-merge"
)

// InputSchemaOverride pairs a merge strategy with the schema fragment to
// merge (or substitute) in.
type InputSchemaOverride struct {
	Strategy MergeStrategy  `yaml:"mergeStrategy" json:"mergeStrategy"`
	Schema   map[string]any `yaml:"schema" json:"schema"`
}

// PropertyOverride post-processes one named property of inputSchema's
// "properties" map without touching sibling properties.
type PropertyOverride struct {
	Description *string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     any     `yaml:"default,omitempty" json:"default,omitempty"`
	Enum        []any   `yaml:"enum,omitempty" json:"enum,omitempty"`
	Type        string  `yaml:"type,omitempty" json:"type,omitempty"`
}

// Override is one entry in the ToolOverrideManager's rule list. A nil
// pointer field means "leave unchanged"; Annotations/PropertyOverrides are
// applied only when non-empty.
type Override struct {
	Name              *string                     `yaml:"name,omitempty" json:"name,omitempty"`
	Title             *string                     `yaml:"title,omitempty" json:"title,omitempty"`
	Description       *string                     `yaml:"description,omitempty" json:"description,omitempty"`
	Annotations       map[string]any              `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	InputSchema       *InputSchemaOverride        `yaml:"inputSchema,omitempty" json:"inputSchema,omitempty"`
	PropertyOverrides map[string]PropertyOverride `yaml:"propertyOverrides,omitempty" json:"propertyOverrides,omitempty"`
}

// Entry binds an override to its config key (tool name or `*`-wildcard
// pattern). Entries are a slice, not a map, so config order is preserved —
// first-wildcard-match-wins depends on it.
//
// Config files express overrides as `overrides: mapping<glob, ToolOverride>`
// (spec.md §6); pkg/config unmarshals that mapping into a
// map[string]overrides.Override and converts it to an ordered []Entry,
// since map iteration order in Go is randomized and first-wildcard-wins
// depends on a stable order.
type Entry struct {
	Key      string
	Override Override
}
