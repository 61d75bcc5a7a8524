package kernel

import "encoding/json"

// toolsListResult is the subset of an upstream "tools/list" response the
// kernel cares about.
type toolsListResult struct {
	Tools []wireToolDefinition `json:"tools"`
}

// wireToolDefinition mirrors the MCP tool-definition JSON shape.
type wireToolDefinition struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// toolsCallParams is the inbound "tools/call" request shape, spec.md
// §4.14: the fullName is split at "__" and translated to the upstream's
// original tool name before forwarding.
type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
