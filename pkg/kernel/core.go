package kernel

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/stacklok/mcp-funnel/pkg/overrides"
	"github.com/stacklok/mcp-funnel/pkg/rpc"
)

// toolListServers is the one built-in kernel tool: it lists the
// currently connected upstream server names. Core tools are hidden from
// tools/list unless exposed via spec.md §4.14 exposeCoreTools, and
// CallTool rejects a hidden core tool as not exposed.
const toolListServers = "list_servers"

func (k *Kernel) registerCoreTools() {
	k.registry.put(ToolRegistryEntry{
		OriginalName: toolListServers,
		Server:       coreServer,
		Definition: overrides.ToolDefinition{
			Name:        toolListServers,
			Description: "List the upstream MCP servers currently connected to the funnel.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		Enabled: k.filter.allows(coreServer, FullName(coreServer, toolListServers)),
	})
}

func (k *Kernel) callCoreTool(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, *rpc.RPCError) {
	switch name {
	case toolListServers:
		k.mu.Lock()
		names := make([]string, 0, len(k.transports))
		for n := range k.transports {
			names = append(names, n)
		}
		k.mu.Unlock()
		sort.Strings(names)

		raw, err := json.Marshal(struct {
			Servers []string `json:"servers"`
		}{Servers: names})
		if err != nil {
			return nil, &rpc.RPCError{Code: int64(codeInternalError), Message: err.Error()}
		}
		return raw, nil
	default:
		return nil, &rpc.RPCError{Code: int64(rpc.CodeMethodNotFound), Message: "unknown core tool: " + name}
	}
}
