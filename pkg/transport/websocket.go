package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stacklok/mcp-funnel/pkg/logger"
	transporterrors "github.com/stacklok/mcp-funnel/pkg/transport/errors"
	"github.com/stacklok/mcp-funnel/pkg/validation"
)

// defaultPongWait is how long the connection waits for a pong before the
// missed-pong is treated as ConnectionTimeout, per spec.md §4.7 WebSocket.
const defaultPongWait = 10 * time.Second

// WebSocketConfig is the spec.md §3 WebSocket TransportConfig variant.
type WebSocketConfig struct {
	URL          string
	AuthFn       func(ctx context.Context) (http.Header, error)
	PingInterval time.Duration
	Reconnect    bool
}

// websocketWire implements the spec.md §4.7 WebSocket contract on top of
// gorilla/websocket: close-code semantics, auth headers on upgrade, and an
// optional ping/pong liveness loop.
type websocketWire struct {
	cfg    WebSocketConfig
	onByte func([]byte)
	onErr  func(error)

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

func newWebsocketWire(cfg WebSocketConfig, onByte func([]byte), onErr func(error)) (*websocketWire, error) {
	if err := validation.ValidateURLScheme(cfg.URL, "websocket transport", "ws", "wss"); err != nil {
		return nil, err
	}
	return &websocketWire{cfg: cfg, onByte: onByte, onErr: onErr}, nil
}

func (w *websocketWire) connect(ctx context.Context) error {
	header := http.Header{}
	if w.cfg.AuthFn != nil {
		authHdr, err := w.cfg.AuthFn(ctx)
		if err != nil {
			return transporterrors.New(transporterrors.KindAuthenticationError, "resolve websocket auth headers", err)
		}
		header = MergeAuthHeaders(header, authHdr)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, w.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return transporterrors.FromHTTPStatus(resp.StatusCode, "websocket upgrade unauthorized")
		}
		return transporterrors.New(transporterrors.KindConnectionFailed, "dial websocket", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.done = make(chan struct{})
	w.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultPongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(defaultPongWait))

	go w.readLoop(conn)
	if w.cfg.PingInterval > 0 {
		go w.pingLoop(conn, w.cfg.PingInterval)
	}
	return nil
}

func (w *websocketWire) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			w.handleReadError(err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		w.onByte(data)
	}
}

// handleReadError maps gorilla's close codes to spec.md §4.7's retry
// semantics: 1000 is a clean closure (no reconnect), 1002 protocol (no
// auto-reconnect), a read-deadline expiry (missed pong) is
// ConnectionTimeout, and 1006 abnormal and anything else is
// ConnectionReset (reconnect if policy allows).
func (w *websocketWire) handleReadError(err error) {
	select {
	case <-w.done:
		return
	default:
	}

	if w.onErr == nil {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		w.onErr(transporterrors.New(transporterrors.KindConnectionClosed, "websocket closed normally", err))
		return
	}
	if websocket.IsCloseError(err, websocket.CloseProtocolError) {
		w.onErr(transporterrors.New(transporterrors.KindProtocolError, "websocket protocol error", err))
		return
	}
	// No pong (or other frame) arrived within defaultPongWait.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		w.onErr(transporterrors.New(transporterrors.KindConnectionTimeout, "websocket pong timeout", err))
		return
	}
	// Abnormal closure (1006) and any other read failure is retryable.
	w.onErr(transporterrors.New(transporterrors.KindConnectionReset, "websocket connection reset", err))
}

func (w *websocketWire) pingLoop(conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			w.writeMu.Unlock()
			if err != nil {
				logger.Warnw("websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (w *websocketWire) sendMessage(_ context.Context, raw []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return transporterrors.New(transporterrors.KindConnectionFailed, "websocket not connected", nil)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return transporterrors.New(transporterrors.KindConnectionReset, "write websocket message", err)
	}
	return nil
}

func (w *websocketWire) closeConnection() error {
	w.mu.Lock()
	conn := w.conn
	done := w.done
	w.mu.Unlock()
	if conn == nil {
		return nil
	}
	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}

	w.writeMu.Lock()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	w.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		return fmt.Errorf("close websocket: %w", err)
	}
	return nil
}
