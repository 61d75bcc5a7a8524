package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/stacklok/mcp-funnel/pkg/logger"
	transporterrors "github.com/stacklok/mcp-funnel/pkg/transport/errors"
	"github.com/stacklok/mcp-funnel/pkg/validation"
)

// SSEConfig is the spec.md §3 SSE TransportConfig variant.
type SSEConfig struct {
	URL       string
	AuthFn    func(ctx context.Context) (http.Header, error)
	Reconnect bool
}

// sseWire pairs a GET event stream (the EventSource-equivalent inbound
// channel) with an HTTP POST channel for outbound requests, per spec.md
// §4.7 SSE.
type sseWire struct {
	cfg    SSEConfig
	client *http.Client
	onByte func([]byte)
	onErr  func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newSSEWire(cfg SSEConfig, onByte func([]byte), onErr func(error)) (*sseWire, error) {
	if err := validation.ValidateURLScheme(cfg.URL, "sse transport", "http", "https"); err != nil {
		return nil, err
	}
	return &sseWire{cfg: cfg, client: &http.Client{}, onByte: onByte, onErr: onErr}, nil
}

func (w *sseWire) connect(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, w.cfg.URL, nil)
	if err != nil {
		cancel()
		return transporterrors.New(transporterrors.KindInvalidURL, "build SSE request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if err := w.applyAuth(ctx, req); err != nil {
		cancel()
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		cancel()
		return transporterrors.New(transporterrors.KindConnectionFailed, "open SSE stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		body := resp.Body
		_ = body.Close()
		return transporterrors.FromHTTPStatus(resp.StatusCode, fmt.Sprintf("SSE stream returned %d", resp.StatusCode))
	}

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.readEvents(resp.Body)
	return nil
}

func (w *sseWire) applyAuth(ctx context.Context, req *http.Request) error {
	if w.cfg.AuthFn == nil {
		return nil
	}
	hdr, err := w.cfg.AuthFn(ctx)
	if err != nil {
		return transporterrors.New(transporterrors.KindAuthenticationError, "resolve auth headers", err)
	}
	merged := MergeAuthHeaders(req.Header, hdr)
	req.Header = merged
	return nil
}

// readEvents parses "event:"/"data:" frames per the SSE wire format and
// delivers the accumulated data field as one inbound JSON-RPC frame.
func (w *sseWire) readEvents(body io.ReadCloser) {
	defer body.Close()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				frame := make([]byte, data.Len())
				copy(frame, data.Bytes())
				w.onByte(frame)
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, ":"):
			// event-type and comment lines don't carry JSON-RPC payload.
		}
	}

	if w.onErr != nil {
		w.onErr(transporterrors.New(transporterrors.KindConnectionReset, "SSE stream ended", nil))
	}
}

func (w *sseWire) sendMessage(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return transporterrors.New(transporterrors.KindInvalidURL, "build SSE POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := w.applyAuth(ctx, req); err != nil {
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return transporterrors.New(transporterrors.KindConnectionFailed, "POST SSE outbound message", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return transporterrors.FromHTTPStatus(resp.StatusCode, "SSE outbound POST unauthorized")
	}
	if resp.StatusCode >= 300 {
		return transporterrors.FromHTTPStatus(resp.StatusCode, fmt.Sprintf("SSE outbound POST returned %d", resp.StatusCode))
	}
	return nil
}

func (w *sseWire) closeConnection() error {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// validateSSEURL checks that raw parses as a URL with an http or https
// scheme (spec.md §4.8). Nothing in the module calls it; the SSE wire and
// the TransportFactory call validation.ValidateURLScheme directly.
func validateSSEURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return transporterrors.New(transporterrors.KindInvalidURL, "parse SSE url", err)
	}
	logger.Debugw("validated SSE url", "scheme", u.Scheme)
	return validation.ValidateURLScheme(raw, "sse transport", "http", "https")
}
