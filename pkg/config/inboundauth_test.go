package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-funnel/pkg/inboundauth"
)

func noLookup(string) (string, bool) { return "", false }

func TestInboundAuthTypeNoneAlwaysWins(t *testing.T) {
	t.Parallel()
	a := InboundAuth{Type: "none", Tokens: []string{"shouldBeIgnoredEvenIfPresent"}}
	v, err := a.BuildValidator(noLookup)
	require.NoError(t, err)
	_, ok := v.(*inboundauth.NoneValidator)
	assert.True(t, ok)
}

func TestInboundAuthBearerUsesConfiguredTokens(t *testing.T) {
	t.Parallel()
	a := InboundAuth{Type: "bearer", Tokens: []string{"0123456789abcdef"}}
	v, err := a.BuildValidator(noLookup)
	require.NoError(t, err)
	_, ok := v.(*inboundauth.BearerValidator)
	assert.True(t, ok)
}

func TestInboundAuthBearerWithoutTokensIsAnError(t *testing.T) {
	t.Parallel()
	a := InboundAuth{Type: "bearer"}
	_, err := a.BuildValidator(noLookup)
	assert.Error(t, err)
}

func TestInboundAuthEnvTokenOverridesConfig(t *testing.T) {
	t.Parallel()
	lookup := func(name string) (string, bool) {
		if name == mcpFunnelAuthTokenEnv {
			return "fedcba9876543210", true
		}
		return "", false
	}
	a := InboundAuth{}
	v, err := a.BuildValidator(lookup)
	require.NoError(t, err)
	_, ok := v.(*inboundauth.BearerValidator)
	assert.True(t, ok)
}

func TestInboundAuthEnvTokenTooShortIsRejected(t *testing.T) {
	t.Parallel()
	lookup := func(name string) (string, bool) {
		if name == mcpFunnelAuthTokenEnv {
			return "short", true
		}
		return "", false
	}
	_, err := InboundAuth{}.BuildValidator(lookup)
	assert.ErrorContains(t, err, mcpFunnelAuthTokenEnv)
}

func TestInboundAuthDefaultsToBootstrap(t *testing.T) {
	t.Parallel()
	// No type, no tokens, DISABLE_INBOUND_AUTH unset: Bootstrap generates
	// and prints a token, returning a BearerValidator over it.
	v, err := InboundAuth{}.BuildValidator(noLookup)
	require.NoError(t, err)
	_, ok := v.(*inboundauth.BearerValidator)
	assert.True(t, ok)
}

func TestInboundAuthDefaultsToNoneWhenDisabled(t *testing.T) {
	t.Parallel()
	lookup := func(name string) (string, bool) {
		if name == "DISABLE_INBOUND_AUTH" {
			return "true", true
		}
		return "", false
	}
	v, err := InboundAuth{}.BuildValidator(lookup)
	require.NoError(t, err)
	_, ok := v.(*inboundauth.NoneValidator)
	assert.True(t, ok)
}
