package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRegistryReplaceServerIsAtomicPerServer(t *testing.T) {
	t.Parallel()
	r := newToolRegistry()
	r.put(ToolRegistryEntry{OriginalName: "get", Server: "fetch"})
	r.put(ToolRegistryEntry{OriginalName: "commit", Server: "git"})

	r.replaceServer("fetch", []ToolRegistryEntry{{OriginalName: "post", Server: "fetch"}})

	_, ok := r.get(FullName("fetch", "get"))
	assert.False(t, ok, "old fetch entries are dropped")
	_, ok = r.get(FullName("fetch", "post"))
	assert.True(t, ok, "new fetch entries are installed")
	_, ok = r.get(FullName("git", "commit"))
	assert.True(t, ok, "other servers' entries are untouched")
}

func TestBuildEntriesAppliesOverridesAndFilter(t *testing.T) {
	t.Parallel()
	filter, err := newToolFilter(Config{HideTools: []string{"fetch__dangerous"}})
	require.NoError(t, err)

	entries := buildEntries("fetch", []wireToolDefinition{
		{Name: "get", Description: "fetches a url"},
		{Name: "dangerous", Description: "do not expose"},
	}, nil, filter)

	require.Len(t, entries, 2)
	byName := map[string]ToolRegistryEntry{}
	for _, e := range entries {
		byName[e.OriginalName] = e
	}
	assert.True(t, byName["get"].Enabled)
	assert.False(t, byName["dangerous"].Enabled)
	assert.Equal(t, "fetches a url", byName["get"].Definition.Description)
}

func TestSplitFullName(t *testing.T) {
	t.Parallel()
	server, tool, ok := SplitFullName(FullName("fetch", "get"))
	require.True(t, ok)
	assert.Equal(t, "fetch", server)
	assert.Equal(t, "get", tool)

	_, _, ok = SplitFullName("no-separator-here")
	assert.False(t, ok)
}
