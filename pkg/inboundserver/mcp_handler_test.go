package inboundserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-funnel/pkg/inboundauth"
	"github.com/stacklok/mcp-funnel/pkg/kernel"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	k, err := kernel.New(kernel.Config{ExposeCoreTools: []string{"*"}}, nil)
	require.NoError(t, err)
	require.NoError(t, k.Start(t.Context()))

	handler := inboundauth.Middleware(inboundauth.NewNoneValidator())(newMCPHandler(k))
	return httptest.NewServer(handler)
}

func postJSONRPC(t *testing.T, srv *httptest.Server, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestMCPHandlerInitialize(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSONRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
}

func TestMCPHandlerToolsListIncludesCoreTool(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSONRPC(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok)
	tools, ok := result["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestMCPHandlerUnknownMethodReturnsJSONRPCError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSONRPC(t, srv, `{"jsonrpc":"2.0","id":3,"method":"prompts/list","params":{}}`)
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(-32601), errObj["code"])
}

func TestMCPHandlerInitializeIssuesSessionID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	sessionID := resp.Header.Get("Mcp-Session-Id")
	assert.NotEmpty(t, sessionID)
}

func TestMCPHandlerDeleteTerminatesSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	initResp, err := http.Post(srv.URL, "application/json", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NoError(t, err)
	defer initResp.Body.Close()
	sessionID := initResp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)

	req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)

	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	req2, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	require.NoError(t, err)
	req2.Header.Set("Mcp-Session-Id", sessionID)
	delResp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer delResp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, delResp2.StatusCode, "terminating an already-terminated session is a 404")
}

func TestMCPHandlerDeleteWithoutSessionIDIsBadRequest(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMCPHandlerNotificationGetsNoBody(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(
		`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
