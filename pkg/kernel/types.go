// Package kernel implements spec.md §4.14 ProxyKernel: it starts one
// BaseClientTransport per configured upstream server, aggregates their
// tools into a single ToolRegistry, routes inbound tools/call by
// `<server>__<toolName>` fullName, applies ToolOverrideManager
// post-processing, and converts transport errors to JSON-RPC errors on
// the inbound path.
package kernel

import (
	"time"

	"github.com/stacklok/mcp-funnel/pkg/overrides"
	"github.com/stacklok/mcp-funnel/pkg/transport"
	"github.com/stacklok/mcp-funnel/pkg/transport/factory"
)

// coreServer is the pseudo-server name for tools the kernel itself
// provides (not forwarded to any upstream transport).
const coreServer = "core"

// FullNameSeparator joins a server name and a tool's original name into
// the registry's fullName key, per spec.md §4.14.
const FullNameSeparator = "__"

// ToolRegistryEntry is one row of the ProxyKernel's ToolRegistry.
type ToolRegistryEntry struct {
	OriginalName string
	Server       string
	Definition   overrides.ToolDefinition
	Enabled      bool
}

// FullName builds the `<server>__<toolName>` registry key.
func FullName(server, toolName string) string {
	return server + FullNameSeparator + toolName
}

// SplitFullName reverses FullName, splitting at the first separator so a
// tool name that itself contains "__" stays attached to the tool half.
func SplitFullName(fullName string) (server, toolName string, ok bool) {
	for i := 0; i+len(FullNameSeparator) <= len(fullName); i++ {
		if fullName[i:i+len(FullNameSeparator)] == FullNameSeparator {
			return fullName[:i], fullName[i+len(FullNameSeparator):], true
		}
	}
	return "", "", false
}

// ServerSpec is one configured upstream server: its transport config plus
// an optional per-server auth provider.
type ServerSpec struct {
	factory.ServerConfig
	AuthProvider transport.AuthProvider
}

// Config is the ProxyKernel's configuration surface, spec.md §4.14 plus
// §4.12's override rules. ExposeTools/HideTools/ExposeCoreTools are all
// glob lists per spec.md §6's config-file shape (`exposeCoreTools:
// [glob]`), not a single boolean switch.
type Config struct {
	Servers         []ServerSpec
	ExposeTools     []string
	HideTools       []string
	ExposeCoreTools []string
	Overrides       []overrides.Entry

	// ToolsListTimeout bounds each upstream tools/list call during a
	// refresh. Defaults to 10s.
	ToolsListTimeout time.Duration
}

func (c Config) toolsListTimeout() time.Duration {
	if c.ToolsListTimeout <= 0 {
		return 10 * time.Second
	}
	return c.ToolsListTimeout
}
