package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stacklok/mcp-funnel/pkg/envresolver"
	"github.com/stacklok/mcp-funnel/pkg/logger"
	"github.com/stacklok/mcp-funnel/pkg/overrides"
	"github.com/stacklok/mcp-funnel/pkg/rpc"
	"github.com/stacklok/mcp-funnel/pkg/transport"
	"github.com/stacklok/mcp-funnel/pkg/transport/factory"
)

// notificationToolsListChanged is the MCP notification upstream servers
// send when their tool set changes (spec.md §4.14).
const notificationToolsListChanged = "notifications/tools/list_changed"

const (
	methodToolsList = "tools/list"
	methodToolsCall = "tools/call"
)

// Kernel is spec.md §4.14 ProxyKernel: it owns one Transport per
// configured server, the aggregated ToolRegistry, and the override/filter
// pipeline applied to everything the inbound client sees.
type Kernel struct {
	cfg      Config
	builder  TransportBuilder
	filter   *toolFilter
	override *overrides.Manager

	mu         sync.Mutex
	transports map[string]Transport
	registry   *toolRegistry

	onToolsChanged func()
}

// New builds a Kernel from cfg. lookup backs environment-variable
// resolution in the underlying TransportFactory (nil uses os.LookupEnv).
func New(cfg Config, lookup envresolver.Lookup) (*Kernel, error) {
	filter, err := newToolFilter(cfg)
	if err != nil {
		return nil, fmt.Errorf("compile tool filter: %w", err)
	}
	override, err := overrides.NewManager(cfg.Overrides)
	if err != nil {
		return nil, fmt.Errorf("compile overrides: %w", err)
	}

	k := &Kernel{
		cfg:        cfg,
		builder:    factoryBuilder(factory.New(lookup)),
		filter:     filter,
		override:   override,
		transports: make(map[string]Transport),
		registry:   newToolRegistry(),
	}
	k.registerCoreTools()
	return k, nil
}

// OnToolsChanged registers the callback invoked after every successful
// tool-list refresh (upstream list_changed, or a server (re)start), whether
// or not the registry contents changed — the inbound transport uses it to
// re-emit its own list_changed.
func (k *Kernel) OnToolsChanged(fn func()) {
	k.onToolsChanged = fn
}

// Start builds and starts one transport per configured server, then
// fetches each server's initial tool list.
func (k *Kernel) Start(ctx context.Context) error {
	for _, spec := range k.cfg.Servers {
		server := spec.Name
		t, err := k.builder(spec.ServerConfig, spec.AuthProvider, k.upstreamMessageHandler(server))
		if err != nil {
			return fmt.Errorf("build transport %q: %w", server, err)
		}
		if err := t.Start(ctx); err != nil {
			return fmt.Errorf("start transport %q: %w", server, err)
		}

		k.mu.Lock()
		k.transports[server] = t
		k.mu.Unlock()

		if err := k.refreshServerTools(ctx, server); err != nil {
			logger.Warnw("initial tools/list failed", "server", server, "error", err)
		}
	}
	return nil
}

// Close closes every upstream transport. The first error is returned;
// every transport is still given a chance to close.
func (k *Kernel) Close() error {
	k.mu.Lock()
	transports := make([]Transport, 0, len(k.transports))
	for _, t := range k.transports {
		transports = append(transports, t)
	}
	k.mu.Unlock()

	var firstErr error
	for _, t := range transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (k *Kernel) upstreamMessageHandler(server string) transport.MessageHandler {
	return func(decoded *rpc.Decoded) {
		if decoded.Kind != rpc.KindNotification || decoded.Method != notificationToolsListChanged {
			return
		}
		go func() {
			if err := k.refreshServerTools(context.Background(), server); err != nil {
				logger.Warnw("tools/list refresh after list_changed failed", "server", server, "error", err)
			}
		}()
	}
}

// refreshServerTools re-fetches one server's tool list, applies
// overrides/filtering, replaces its registry entries, and fires
// onToolsChanged after every successful refresh.
func (k *Kernel) refreshServerTools(ctx context.Context, server string) error {
	k.mu.Lock()
	t, ok := k.transports[server]
	k.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown server %q", server)
	}

	ctx, cancel := context.WithTimeout(ctx, k.cfg.toolsListTimeout())
	defer cancel()

	raw, err := t.SendRequest(ctx, methodToolsList, nil)
	if err != nil {
		return fmt.Errorf("server %q tools/list: %w", server, err)
	}

	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("server %q tools/list: decode result: %w", server, err)
	}

	entries := buildEntries(server, result.Tools, k.override, k.filter)
	k.registry.replaceServer(server, entries)

	if k.onToolsChanged != nil {
		k.onToolsChanged()
	}
	return nil
}

// ListTools returns every enabled registry entry's definition, fullName
// as Name, for an inbound "tools/list" response.
func (k *Kernel) ListTools() []overrides.ToolDefinition {
	entries := k.registry.list()
	out := make([]overrides.ToolDefinition, 0, len(entries))
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		def := e.Definition
		// The wire-visible name is always the fullName, never an
		// override's cosmetic rename: tools/call routing looks the
		// fullName up in the registry, so it must stay load-bearing. An
		// override's Title/Description still reach the client unchanged.
		def.Name = FullName(e.Server, e.OriginalName)
		out = append(out, def)
	}
	return out
}

// CallTool routes an inbound "tools/call" by looking fullName up in the
// registry: core tools are handled locally, everything else is forwarded
// to the owning transport with its original name restored.
func (k *Kernel) CallTool(ctx context.Context, fullName string, arguments json.RawMessage) (json.RawMessage, *rpc.RPCError) {
	entry, ok := k.registry.get(fullName)
	if !ok {
		return nil, &rpc.RPCError{Code: int64(rpc.CodeMethodNotFound), Message: "unknown tool: " + fullName}
	}
	if !entry.Enabled {
		return nil, &rpc.RPCError{Code: int64(rpc.CodeMethodNotFound), Message: "tool not exposed: " + fullName}
	}

	if entry.Server == coreServer {
		return k.callCoreTool(ctx, entry.OriginalName, arguments)
	}

	k.mu.Lock()
	t, ok := k.transports[entry.Server]
	k.mu.Unlock()
	if !ok {
		return nil, &rpc.RPCError{Code: int64(codeInternalError), Message: "server not connected: " + entry.Server}
	}

	params := toolsCallParams{Name: entry.OriginalName, Arguments: arguments}
	raw, err := t.SendRequest(ctx, methodToolsCall, params)
	if err != nil {
		return nil, toRPCError(err)
	}
	return raw, nil
}

// HandleRequest dispatches one inbound JSON-RPC request by method,
// converting both routing failures and upstream transport failures to
// JSON-RPC errors per spec.md §4.14/§7.
func (k *Kernel) HandleRequest(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *rpc.RPCError) {
	switch method {
	case methodToolsList:
		tools := k.ListTools()
		raw, err := json.Marshal(struct {
			Tools []overrides.ToolDefinition `json:"tools"`
		}{Tools: tools})
		if err != nil {
			return nil, &rpc.RPCError{Code: int64(codeInternalError), Message: err.Error()}
		}
		return raw, nil
	case methodToolsCall:
		var call toolsCallParams
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, &rpc.RPCError{Code: int64(codeInternalError), Message: "invalid tools/call params: " + err.Error()}
		}
		return k.CallTool(ctx, call.Name, call.Arguments)
	default:
		return nil, errUnknownMethod(method)
	}
}
