package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWireReceivesEventStreamFrames(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/tools/list_changed\"}\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	received := make(chan []byte, 1)
	wire, err := newSSEWire(SSEConfig{URL: srv.URL}, func(b []byte) { received <- b }, func(error) {})
	require.NoError(t, err)

	require.NoError(t, wire.connect(context.Background()))
	defer wire.closeConnection()

	select {
	case frame := <-received:
		assert.Contains(t, string(frame), "notifications/tools/list_changed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE frame")
	}
}

func TestSSEWireSendMessagePOSTs(t *testing.T) {
	t.Parallel()
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			buf := make([]byte, 1024)
			n, _ := r.Body.Read(buf)
			gotBody = string(buf[:n])
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wire, err := newSSEWire(SSEConfig{URL: srv.URL}, func([]byte) {}, func(error) {})
	require.NoError(t, err)

	require.NoError(t, wire.sendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	assert.Contains(t, gotBody, `"method":"tools/list"`)
}

func TestSSEWireRejectsNonHTTPScheme(t *testing.T) {
	t.Parallel()
	_, err := newSSEWire(SSEConfig{URL: "ws://example.com/sse"}, func([]byte) {}, func(error) {})
	assert.Error(t, err)
}

func TestSSEWireUnauthorizedConnect(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	wire, err := newSSEWire(SSEConfig{URL: srv.URL}, func([]byte) {}, func(error) {})
	require.NoError(t, err)

	err = wire.connect(context.Background())
	assert.Error(t, err)
}
