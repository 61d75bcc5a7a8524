package secrets

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	name   string
	values map[string]string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ResolveSecrets(ctx context.Context) (map[string]string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.values, nil
}

func TestManagerResolveSecretsMergesLeftToRightLaterOverrides(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.AddProvider(&stubProvider{name: "a", values: map[string]string{"K": "from-a", "ONLY_A": "x"}})
	m.AddProvider(&stubProvider{name: "b", values: map[string]string{"K": "from-b"}})

	got := m.ResolveSecrets(context.Background())
	assert.Equal(t, "from-b", got["K"])
	assert.Equal(t, "x", got["ONLY_A"])
}

func TestManagerResolveSecretsIsolatesProviderFailure(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.AddProvider(&stubProvider{name: "good", values: map[string]string{"K": "v"}})
	m.AddProvider(&stubProvider{name: "bad", err: errors.New("boom")})

	got := m.ResolveSecrets(context.Background())
	assert.Equal(t, map[string]string{"K": "v"}, got)
}

func TestManagerAddProviderDedupsByName(t *testing.T) {
	t.Parallel()
	m := NewManager()
	p := &stubProvider{name: "dup", values: map[string]string{"K": "v"}}
	m.AddProvider(p)
	m.AddProvider(p)

	assert.Equal(t, []string{"dup"}, m.ProviderNames())
}

func TestManagerRemoveProvider(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.AddProvider(&stubProvider{name: "gone", values: map[string]string{"K": "v"}})
	m.RemoveProvider("gone")

	got := m.ResolveSecrets(context.Background())
	assert.Empty(t, got)
	assert.Empty(t, m.ProviderNames())
}

func TestManagerTTLCacheServesStaleUntilExpiry(t *testing.T) {
	t.Parallel()
	p := &stubProvider{name: "p", values: map[string]string{"K": "v1"}}
	m := NewManager(WithTTL(50 * time.Millisecond))
	m.AddProvider(p)

	first := m.ResolveSecrets(context.Background())
	assert.Equal(t, "v1", first["K"])

	p.values = map[string]string{"K": "v2"}
	cached := m.ResolveSecrets(context.Background())
	assert.Equal(t, "v1", cached["K"], "within TTL window the cached snapshot is served")

	time.Sleep(60 * time.Millisecond)
	fresh := m.ResolveSecrets(context.Background())
	assert.Equal(t, "v2", fresh["K"])
}

func TestManagerClearCacheForcesReresolve(t *testing.T) {
	t.Parallel()
	p := &stubProvider{name: "p", values: map[string]string{"K": "v1"}}
	m := NewManager(WithTTL(time.Minute))
	m.AddProvider(p)

	_ = m.ResolveSecrets(context.Background())
	p.values = map[string]string{"K": "v2"}
	m.ClearCache()

	got := m.ResolveSecrets(context.Background())
	assert.Equal(t, "v2", got["K"])
}

func TestManagerResolveSecretsRunsProvidersConcurrently(t *testing.T) {
	t.Parallel()
	m := NewManager()
	const n = 5
	for i := 0; i < n; i++ {
		m.AddProvider(&stubProvider{name: string(rune('a' + i)), values: map[string]string{}, delay: 30 * time.Millisecond})
	}

	start := time.Now()
	m.ResolveSecrets(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Duration(n)*30*time.Millisecond, "providers should resolve concurrently, not sequentially")
}

func TestManagerLookupAdaptsToEnvresolverShape(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.AddProvider(&stubProvider{name: "p", values: map[string]string{"FOUND": "yes"}})

	v, ok := m.Lookup("FOUND")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)

	_, ok = m.Lookup("MISSING")
	assert.False(t, ok)
}
