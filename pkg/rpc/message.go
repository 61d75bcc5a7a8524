// Package rpc implements the generic JSON-RPC message plane shared by
// every upstream transport: request/response correlation with timeouts,
// notification routing, and orderly cancellation (spec.md §3 PendingRequest,
// §4.5 MessageCorrelator).
//
// Outgoing requests are framed with golang.org/x/exp/jsonrpc2, the wire
// library the rest of the corpus (pkg/transport/stdio_test.go) builds its
// proxy message channel on. Incoming bytes are decoded into the tagged
// JsonRpcMessage variant from spec.md §3 directly, since the correlator
// needs to distinguish Request/Response/Notification by shape rather than
// by jsonrpc2's own dispatch.
package rpc

import (
	"encoding/json"
	"fmt"

	"golang.org/x/exp/jsonrpc2"
)

// RPCError is the JSON-RPC 2.0 error object, spec.md §3.
type RPCError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC 2.0 error codes used by the kernel (spec.md §7).
const (
	CodeMethodNotFound  = -32601
	CodeRequestTimeout  = -32000
	CodeTransportClosed = -32001
)

// envelope is the wire shape used to classify incoming bytes into the
// tagged JsonRpcMessage variant without committing to jsonrpc2's own
// decode path, which does not expose a raw "result" field directly.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Kind classifies a decoded message.
type Kind int

// The three JsonRpcMessage variants.
const (
	KindRequest Kind = iota
	KindResponse
	KindNotification
)

// Decoded is the parsed form of one incoming frame.
type Decoded struct {
	Kind    Kind
	ID      string // raw JSON of the id field, used as the correlation key
	Method  string
	Params  json.RawMessage
	Result  json.RawMessage
	Error   *RPCError
}

// Decode parses raw bytes into a Decoded message, enforcing
// `jsonrpc == "2.0"` per spec.md §4.6 parseMessage.
func Decode(raw []byte) (*Decoded, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed JSON-RPC frame: %w", err)
	}
	if env.JSONRPC != "2.0" {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", env.JSONRPC)
	}

	hasID := len(env.ID) > 0 && string(env.ID) != "null"
	switch {
	case hasID && env.Method != "":
		return &Decoded{Kind: KindRequest, ID: string(env.ID), Method: env.Method, Params: env.Params}, nil
	case hasID:
		return &Decoded{Kind: KindResponse, ID: string(env.ID), Result: env.Result, Error: env.Error}, nil
	case env.Method != "":
		return &Decoded{Kind: KindNotification, Method: env.Method, Params: env.Params}, nil
	default:
		return nil, fmt.Errorf("JSON-RPC frame has neither id nor method")
	}
}

// EncodeRequest serializes a request with the caller-supplied id using
// golang.org/x/exp/jsonrpc2's wire encoder.
func EncodeRequest(id jsonrpc2.ID, method string, params any) ([]byte, error) {
	req, err := jsonrpc2.NewCall(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("build jsonrpc2 call: %w", err)
	}
	return jsonrpc2.EncodeMessage(req)
}

// EncodeNotification serializes a notification (no id).
func EncodeNotification(method string, params any) ([]byte, error) {
	note, err := jsonrpc2.NewNotification(method, params)
	if err != nil {
		return nil, fmt.Errorf("build jsonrpc2 notification: %w", err)
	}
	return jsonrpc2.EncodeMessage(note)
}

// EncodeResponse serializes a response for the given raw id JSON.
func EncodeResponse(idJSON string, result any, rpcErr *RPCError) ([]byte, error) {
	env := envelope{JSONRPC: "2.0", ID: json.RawMessage(idJSON)}
	if rpcErr != nil {
		env.Error = rpcErr
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		env.Result = raw
	}
	return json.Marshal(env)
}
