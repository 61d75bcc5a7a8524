package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamableHTTPWireSendAndSessionCorrelation(t *testing.T) {
	t.Parallel()
	var gotSessionID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSessionID = r.Header.Get(sessionIDHeader)
		w.Header().Set(sessionIDHeader, "session-abc")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer srv.Close()

	var received []byte
	wire, err := newStreamableHTTPWire(StreamableHTTPConfig{URL: srv.URL}, func(b []byte) { received = b }, func(error) {})
	require.NoError(t, err)
	require.NoError(t, wire.connect(context.Background()))

	require.NoError(t, wire.sendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	assert.Empty(t, gotSessionID)
	assert.Contains(t, string(received), `"ok":true`)

	require.NoError(t, wire.sendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))
	assert.Equal(t, "session-abc", gotSessionID)
}

func TestStreamableHTTPWireRefreshesOnceOn401(t *testing.T) {
	t.Parallel()
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer srv.Close()

	refreshCalls := 0
	authFn := func(context.Context) (http.Header, error) {
		refreshCalls++
		return http.Header{"Authorization": {"Bearer token"}}, nil
	}

	wire, err := newStreamableHTTPWire(StreamableHTTPConfig{URL: srv.URL, AuthFn: authFn}, func([]byte) {}, func(error) {})
	require.NoError(t, err)
	require.NoError(t, wire.connect(context.Background()))

	require.NoError(t, wire.sendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"x"}`)))
	assert.Equal(t, 2, calls)
}

func TestStreamableHTTPWireSecondUnauthorizedFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	authFn := func(context.Context) (http.Header, error) {
		return http.Header{"Authorization": {"Bearer token"}}, nil
	}
	wire, err := newStreamableHTTPWire(StreamableHTTPConfig{URL: srv.URL, AuthFn: authFn}, func([]byte) {}, func(error) {})
	require.NoError(t, err)
	require.NoError(t, wire.connect(context.Background()))

	err = wire.sendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"x"}`))
	assert.Error(t, err)
}
