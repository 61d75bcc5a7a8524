// Package transport implements spec.md §4.6/§4.7: the shared
// BaseClientTransport lifecycle and the four wire implementations built on
// top of it (stdio, SSE, WebSocket, Streamable HTTP).
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/stacklok/mcp-funnel/pkg/logger"
	"github.com/stacklok/mcp-funnel/pkg/rpc"
	transporterrors "github.com/stacklok/mcp-funnel/pkg/transport/errors"
	"github.com/stacklok/mcp-funnel/pkg/transport/reconnect"
)

// AuthProvider supplies headers for outbound requests/upgrades and can
// refresh credentials, per spec.md §4.6.
type AuthProvider interface {
	// Headers returns the current auth headers to merge onto a request.
	Headers(ctx context.Context) (http.Header, error)
	// Refresh forces the provider to obtain new credentials. Only
	// Base.RefreshAuth calls it, and no transport calls RefreshAuth: on a
	// 401 the Streamable HTTP wire re-sends once with headers fetched again
	// from its auth function, while the SSE and WebSocket wires fail with
	// an authentication error without retrying.
	Refresh(ctx context.Context) error
}

// MessageHandler receives a fully parsed, non-correlated inbound message
// (a notification, or a request originated by the upstream server).
type MessageHandler func(decoded *rpc.Decoded)

// WireTransport is the subclass contract BaseClientTransport drives.
// Concrete stdio/SSE/WebSocket/StreamableHTTP transports implement this.
type WireTransport interface {
	// connect establishes the underlying connection (spawn process, dial
	// socket, open stream). Returning an error aborts start().
	connect(ctx context.Context) error
	// sendMessage writes one already-encoded frame to the wire.
	sendMessage(ctx context.Context, raw []byte) error
	// closeConnection releases the underlying connection. Idempotent.
	closeConnection() error
}

// Lifecycle is the state BaseClientTransport tracks independent of
// ConnectionState: started-once / closed-once guards that don't belong in
// the reconnection state machine.
type lifecycle int

const (
	lifecycleIdle lifecycle = iota
	lifecycleStarted
	lifecycleClosed
)

// Base implements spec.md §4.6 BaseClientTransport. Concrete transports
// embed it and supply a WireTransport.
type Base struct {
	name string
	wire WireTransport

	correlator *rpc.Correlator
	reconnect  *reconnect.Manager
	auth       AuthProvider

	onMessage MessageHandler
	onClose   func(err error)

	mu        sync.Mutex
	state     lifecycle
	closeOnce sync.Once
}

// NewBase wires a concrete transport's WireTransport into the shared
// lifecycle. correlator and reconnectMgr are owned exclusively by this
// transport (spec.md §3 Ownership).
func NewBase(name string, wire WireTransport, correlator *rpc.Correlator, reconnectMgr *reconnect.Manager, auth AuthProvider, onMessage MessageHandler) *Base {
	return &Base{
		name:       name,
		wire:       wire,
		correlator: correlator,
		reconnect:  reconnectMgr,
		auth:       auth,
		onMessage:  onMessage,
	}
}

// OnClose registers the single close callback, fired exactly once.
func (b *Base) OnClose(fn func(err error)) {
	b.onClose = fn
}

// Start begins the connection per spec.md §4.6 step 1. Rejects if already
// started or closed.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != lifecycleIdle {
		b.mu.Unlock()
		return fmt.Errorf("transport %s: already started or closed", b.name)
	}
	b.state = lifecycleStarted
	b.mu.Unlock()

	b.reconnect.OnConnecting()
	if err := b.wire.connect(ctx); err != nil {
		return b.HandleConnectionError(err)
	}
	b.handleConnectionOpen()
	return nil
}

func (b *Base) handleConnectionOpen() {
	b.reconnect.OnConnected()
}

// SendRequest correlates a JSON-RPC request through this transport's
// MessageCorrelator and writes it via the wire (spec.md §4.6 step 2).
func (b *Base) SendRequest(ctx context.Context, method string, params any) ([]byte, error) {
	return b.correlator.SendRequest(ctx, method, params, func(raw []byte) error {
		return b.wire.sendMessage(ctx, raw)
	})
}

// SendNotification passes a notification straight through to the wire with
// no correlation, per spec.md §4.6 step 2.
func (b *Base) SendNotification(ctx context.Context, method string, params any) error {
	raw, err := rpc.EncodeNotification(method, params)
	if err != nil {
		return err
	}
	return b.wire.sendMessage(ctx, raw)
}

// Close implements spec.md §4.6 step 3: idempotent, rejects all pending
// requests, cancels reconnection, closes the wire, fires onclose once.
func (b *Base) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.state = lifecycleClosed
		b.mu.Unlock()

		b.correlator.RejectAllPending(transporterrors.New(transporterrors.KindTransportClosed, "transport closed", nil))
		b.reconnect.Cancel()
		closeErr = b.wire.closeConnection()
		if b.onClose != nil {
			b.onClose(closeErr)
		}
	})
	return closeErr
}

// HandleConnectionError implements spec.md §4.6 step 4: wraps unknown
// errors, schedules a reconnect when retryable, always surfaces the error.
func (b *Base) HandleConnectionError(err error) error {
	te, ok := err.(*transporterrors.TransportError)
	if !ok {
		te = transporterrors.NewUnknown(err.Error(), err, false)
	}

	logger.Warnw("transport connection error", "transport", b.name, "kind", te.Kind, "retryable", te.Retryable)
	b.reconnect.OnDisconnected(te)

	if te.Retryable {
		go func() {
			connectErr := b.reconnect.ScheduleReconnect(context.Background(), func(ctx context.Context) error {
				if err := b.wire.connect(ctx); err != nil {
					return err
				}
				b.handleConnectionOpen()
				return nil
			})
			if connectErr != nil {
				logger.Errorw("reconnection exhausted", "transport", b.name, "error", connectErr)
			}
		}()
	}
	return te
}

// HandleInboundBytes implements spec.md §4.6 step 5 parseMessage plus
// dispatch: rejects frames that aren't jsonrpc 2.0, then either resolves a
// pending request or forwards a notification/server-request to onMessage.
func (b *Base) HandleInboundBytes(raw []byte) error {
	decoded, err := rpc.Decode(raw)
	if err != nil {
		return transporterrors.New(transporterrors.KindProtocolError, err.Error(), err)
	}

	if decoded.Kind == rpc.KindResponse {
		return b.correlator.HandleMessage(raw)
	}
	if b.onMessage != nil {
		b.onMessage(decoded)
	}
	return nil
}

// AuthHeaders implements spec.md §4.6 step 6: delegates to the configured
// AuthProvider, returning nil if none is set. Callers must merge these onto
// caller-supplied headers with auth overriding Authorization on collision,
// and must never place the result in a URL or query string.
func (b *Base) AuthHeaders(ctx context.Context) (http.Header, error) {
	if b.auth == nil {
		return nil, nil
	}
	return b.auth.Headers(ctx)
}

// RefreshAuth forces one credential refresh through the AuthProvider. No
// transport in this package calls it; see AuthProvider.Refresh for how
// each wire handles a 401.
func (b *Base) RefreshAuth(ctx context.Context) error {
	if b.auth == nil {
		return fmt.Errorf("transport %s: no auth provider configured to refresh", b.name)
	}
	return b.auth.Refresh(ctx)
}

// MergeAuthHeaders returns a new header set holding caller's headers with
// auth's merged on top: on any key present in both (Authorization
// included, per spec.md §4.6's header-collision rule), auth's values
// replace caller's. Neither input is mutated.
func MergeAuthHeaders(caller http.Header, auth http.Header) http.Header {
	merged := make(http.Header, len(caller)+len(auth))
	for k, v := range caller {
		merged[k] = append([]string{}, v...)
	}
	for k, v := range auth {
		merged[k] = append([]string{}, v...)
	}
	return merged
}

// Name returns the transport's configured identifier, used in logs and in
// ToolRegistry fullName prefixes.
func (b *Base) Name() string {
	return b.name
}
