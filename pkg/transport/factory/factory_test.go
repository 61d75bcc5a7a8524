package factory

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestBuildNormalizesLegacyStdioConfig(t *testing.T) {
	t.Parallel()
	f := New(lookup(nil))

	base, err := f.Build(ServerConfig{Name: "legacy-server", Command: "cat"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy-server", base.Name())
}

func TestBuildResolvesEnvPatterns(t *testing.T) {
	t.Parallel()
	f := New(lookup(map[string]string{"MCP_TOKEN": "secret"}))

	base, err := f.Build(ServerConfig{
		Name:    "env-server",
		Command: "cat",
		Args:    []string{"${MCP_TOKEN}"},
	}, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, base)
}

func TestBuildRejectsBadServerID(t *testing.T) {
	t.Parallel()
	f := New(lookup(nil))
	_, err := f.Build(ServerConfig{Name: "bad id!", Command: "cat"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestBuildRejectsWrongSchemeForSSE(t *testing.T) {
	t.Parallel()
	f := New(lookup(nil))
	_, err := f.Build(ServerConfig{Name: "sse-server", Transport: KindSSE, URL: "ws://example.com"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestBuildCachesByConfigAndIdentity(t *testing.T) {
	t.Parallel()
	f := New(lookup(nil))
	cfg := ServerConfig{Name: "cached-server", Command: "cat"}

	first, err := f.Build(cfg, nil, nil, nil)
	require.NoError(t, err)
	second, err := f.Build(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	third, err := f.Build(cfg, &fakeIdentityAuth{id: "auth-1"}, nil, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

type fakeIdentityAuth struct{ id string }

func (f *fakeIdentityAuth) Headers(context.Context) (http.Header, error) { return nil, nil }
func (f *fakeIdentityAuth) Refresh(context.Context) error                { return nil }
func (f *fakeIdentityAuth) InstanceID() string                          { return f.id }
