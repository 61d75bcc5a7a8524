package transport

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioWireRoundTrip(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available on this system")
	}

	received := make(chan []byte, 1)
	cfg := StdioConfig{Command: "cat"}
	w := newStdioWire(cfg, func(b []byte) { received <- b }, func(error) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.connect(ctx))
	defer w.closeConnection()

	require.NoError(t, w.sendMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))

	select {
	case line := <-received:
		assert.Contains(t, string(line), `"method":"ping"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed line")
	}
}

func TestStdioWireProcessExitInvokesOnErr(t *testing.T) {
	t.Parallel()
	errCh := make(chan error, 1)
	cfg := StdioConfig{Command: "sh", Args: []string{"-c", "exit 0"}}
	w := newStdioWire(cfg, func([]byte) {}, func(err error) { errCh <- err })

	require.NoError(t, w.connect(context.Background()))

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for process-exit error")
	}
}

func TestStdioWireCloseDoesNotInvokeOnErr(t *testing.T) {
	t.Parallel()
	errCh := make(chan error, 1)
	cfg := StdioConfig{Command: "cat", ShutdownGrace: 50 * time.Millisecond}
	w := newStdioWire(cfg, func([]byte) {}, func(err error) { errCh <- err })

	require.NoError(t, w.connect(context.Background()))
	require.NoError(t, w.closeConnection())

	select {
	case err := <-errCh:
		t.Fatalf("unexpected onErr after intentional close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStdioWireLengthPrefixedRoundTrip(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available on this system")
	}

	received := make(chan []byte, 1)
	cfg := StdioConfig{Command: "cat", Framing: FramingLengthPrefixed}
	w := newStdioWire(cfg, func(b []byte) { received <- b }, func(error) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.connect(ctx))
	defer w.closeConnection()

	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.NoError(t, w.sendMessage(ctx, payload))

	select {
	case echoed := <-received:
		assert.Equal(t, payload, echoed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for length-prefixed echo")
	}
}

func TestEnvSlice(t *testing.T) {
	t.Parallel()
	assert.Nil(t, envSlice(nil))
	out := envSlice(map[string]string{"A": "1"})
	assert.Equal(t, []string{"A=1"}, out)
}
