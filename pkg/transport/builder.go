package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stacklok/mcp-funnel/pkg/rpc"
	"github.com/stacklok/mcp-funnel/pkg/transport/reconnect"
)

// defaultReconnectPolicy is applied when a config enables reconnection
// without its own tuning (spec.md §4.8 "reconnect defaults per transport").
var defaultReconnectPolicy = reconnect.Policy{
	MaxAttempts:       10,
	InitialDelay:      500 * time.Millisecond,
	BackoffMultiplier: 2,
	MaxDelay:          30 * time.Second,
	JitterFraction:    0.2,
}

// BuildConfig is the fully resolved, defaulted, and validated config the
// TransportFactory hands to NewForConfig. Kind matches one of the
// factory.Kind string values.
type BuildConfig struct {
	Kind                 string
	Command              string
	Args                 []string
	Env                  map[string]string
	Framing              Framing
	URL                  string
	Timeout              time.Duration
	Reconnect            bool
	PingInterval         time.Duration
	SessionID            string
	DedicatedEventStream bool
}

// NewForConfig constructs the concrete wire for cfg.Kind and wraps it in a
// Base, wiring its callbacks back into the Base's dispatch methods.
func NewForConfig(name string, cfg BuildConfig, authProvider AuthProvider, onMessage MessageHandler) (*Base, error) {
	correlator := rpc.New(rpc.WithRequestTimeout(cfg.Timeout))

	policy := defaultReconnectPolicy
	if !cfg.Reconnect {
		policy.MaxAttempts = 0
	}
	reconnectMgr := reconnect.New(policy)

	var base *Base
	onByte := func(raw []byte) {
		if err := base.HandleInboundBytes(raw); err != nil {
			base.HandleConnectionError(err)
		}
	}
	onErr := func(err error) {
		base.HandleConnectionError(err)
	}

	wire, err := newWireForKind(cfg, authProvider, onByte, onErr)
	if err != nil {
		return nil, err
	}

	base = NewBase(name, wire, correlator, reconnectMgr, authProvider, onMessage)
	return base, nil
}

func newWireForKind(cfg BuildConfig, authProvider AuthProvider, onByte func([]byte), onErr func(error)) (WireTransport, error) {
	authFn := authHeaderFunc(authProvider)

	switch cfg.Kind {
	case "stdio":
		return newStdioWire(StdioConfig{Command: cfg.Command, Args: cfg.Args, Env: cfg.Env, Framing: cfg.Framing}, onByte, onErr), nil
	case "sse":
		return newSSEWire(SSEConfig{URL: cfg.URL, AuthFn: authFn, Reconnect: cfg.Reconnect}, onByte, onErr)
	case "websocket":
		return newWebsocketWire(WebSocketConfig{URL: cfg.URL, AuthFn: authFn, PingInterval: cfg.PingInterval, Reconnect: cfg.Reconnect}, onByte, onErr)
	case "streamable-http":
		return newStreamableHTTPWire(StreamableHTTPConfig{URL: cfg.URL, SessionID: cfg.SessionID, AuthFn: authFn, DedicatedEventStream: cfg.DedicatedEventStream}, onByte, onErr)
	default:
		return nil, fmt.Errorf("unsupported transport kind %q", cfg.Kind)
	}
}

// authHeaderFunc adapts an AuthProvider to the per-wire AuthFn shape, or
// nil when no provider is configured.
func authHeaderFunc(authProvider AuthProvider) func(ctx context.Context) (http.Header, error) {
	if authProvider == nil {
		return nil
	}
	return authProvider.Headers
}
