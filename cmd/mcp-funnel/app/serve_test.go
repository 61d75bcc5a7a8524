package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenAddrDefaults(t *testing.T) {
	t.Parallel()
	lookup := func(string) (string, bool) { return "", false }
	assert.Equal(t, ":8080", listenAddr(lookup))
}

func TestListenAddrHonorsHostAndPort(t *testing.T) {
	t.Parallel()
	values := map[string]string{"HOST": "127.0.0.1", "PORT": "9090"}
	lookup := func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
	assert.Equal(t, "127.0.0.1:9090", listenAddr(lookup))
}

func TestEnvLookupFallsBackToOS(t *testing.T) {
	t.Parallel()
	t.Setenv("MCP_FUNNEL_TEST_VAR", "from-os")
	secretsLookup := func(string) (string, bool) { return "", false }
	lookup := envLookup(secretsLookup)

	v, ok := lookup("MCP_FUNNEL_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-os", v)
}

func TestEnvLookupPrefersSecretsManager(t *testing.T) {
	t.Parallel()
	secretsLookup := func(name string) (string, bool) {
		if name == "API_KEY" {
			return "from-secrets", true
		}
		return "", false
	}
	lookup := envLookup(secretsLookup)

	v, ok := lookup("API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "from-secrets", v)
}
