package inboundserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/stacklok/mcp-funnel/pkg/kernel"
	"github.com/stacklok/mcp-funnel/pkg/logger"
	"github.com/stacklok/mcp-funnel/pkg/rpc"
	"github.com/stacklok/mcp-funnel/pkg/session"
)

// protocolVersion is the only extra field initialize() needs to echo back;
// everything else about negotiation is out of scope for this aggregator
// (spec.md §6 names initialize as a minimally required method without
// further capability negotiation detail).
const protocolVersion = "2025-06-18"

// mcpSessionHeader is the Streamable HTTP session-correlation header,
// spec.md §4.7 "responses are correlated via ... a response header
// Mcp-Session-Id".
const mcpSessionHeader = "Mcp-Session-Id"

// newMCPHandler adapts kernel.Kernel.HandleRequest to net/http, decoding
// one JSON-RPC frame per POST body and replying with the matching
// response or JSON-RPC error, per spec.md §6's "HTTP POST" inbound
// transport variant. Each distinct Mcp-Session-Id is tracked in a
// session.Registry (spec.md §4.13): `initialize` creates one, every
// request records activity against it, and a DELETE terminates it,
// snapshotting into the registry's TerminatedCache.
func newMCPHandler(k *kernel.Kernel) http.Handler {
	registry := session.NewRegistry(0, 0)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			terminateSession(w, registry, r.Header.Get(mcpSessionHeader))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		decoded, err := rpc.Decode(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if decoded.Kind != rpc.KindRequest {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		sessionID := sessionIDFor(registry, r, decoded)
		registry.RecordActivity(sessionID)

		result, rpcErr := handleMethod(r.Context(), k, decoded)

		resp, err := rpc.EncodeResponse(decoded.ID, result, rpcErr)
		if err != nil {
			logger.Errorf("encode MCP response: %v", err)
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
		if sessionID != "" {
			w.Header().Set(mcpSessionHeader, sessionID)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(resp); err != nil {
			logger.Warnw("failed to write MCP response", "error", err)
		}
	})
}

// sessionIDFor returns the caller's existing Mcp-Session-Id, or mints and
// registers a new one on initialize.
func sessionIDFor(registry *session.Registry, r *http.Request, decoded *rpc.Decoded) string {
	if id := r.Header.Get(mcpSessionHeader); id != "" {
		return id
	}
	if decoded.Method != methodInitialize {
		return ""
	}
	id, err := newSessionID()
	if err != nil {
		logger.Warnw("failed to mint session id", "error", err)
		return ""
	}
	registry.Create(id)
	return id
}

func terminateSession(w http.ResponseWriter, registry *session.Registry, id string) {
	if id == "" {
		http.Error(w, "missing "+mcpSessionHeader, http.StatusBadRequest)
		return
	}
	if _, ok := registry.Terminate(id); !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

const methodInitialize = "initialize"

func handleMethod(ctx context.Context, k *kernel.Kernel, decoded *rpc.Decoded) (any, *rpc.RPCError) {
	if decoded.Method == methodInitialize {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": true}},
			"serverInfo":      map[string]any{"name": "mcp-funnel", "version": protocolVersion},
		}, nil
	}

	raw, rpcErr := k.HandleRequest(ctx, decoded.Method, decoded.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return raw, nil
}
