package kernel

import (
	"context"
	"errors"

	"github.com/stacklok/mcp-funnel/pkg/rpc"
	transporterrors "github.com/stacklok/mcp-funnel/pkg/transport/errors"
)

// codeInternalError is the standard JSON-RPC 2.0 "Internal error" code,
// used for transport failures spec.md §7's three named codes don't cover
// (e.g. connection refused, protocol error) — the taxonomy names
// -32601/-32000/-32001 explicitly and is silent on the rest, so this
// falls back to the generic JSON-RPC code rather than inventing one.
const codeInternalError = -32603

// toRPCError converts a transport-layer error into the JSON-RPC error
// crossing the inbound boundary, per spec.md §4.14 "convert transport
// errors to JSON-RPC errors ... using the taxonomy". A *rpc.RPCError
// already produced upstream (e.g. a JSON-RPC error object relayed from
// the wire) passes through unchanged.
func toRPCError(err error) *rpc.RPCError {
	if err == nil {
		return nil
	}

	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var te *transporterrors.TransportError
	if errors.As(err, &te) {
		code := int64(codeInternalError)
		switch te.Kind {
		case transporterrors.KindTransportClosed:
			code = int64(rpc.CodeTransportClosed)
		case transporterrors.KindRequestTimeout, transporterrors.KindConnectionTimeout, transporterrors.KindGatewayTimeout:
			code = int64(rpc.CodeRequestTimeout)
		}
		return &rpc.RPCError{Code: code, Message: te.Error()}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &rpc.RPCError{Code: int64(rpc.CodeRequestTimeout), Message: err.Error()}
	}

	return &rpc.RPCError{Code: int64(codeInternalError), Message: err.Error()}
}

// errUnknownMethod builds the "method not found" JSON-RPC error for an
// unrecognized inbound method.
func errUnknownMethod(method string) *rpc.RPCError {
	return &rpc.RPCError{Code: int64(rpc.CodeMethodNotFound), Message: "method not found: " + method}
}
