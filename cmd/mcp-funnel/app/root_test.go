package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmdRegistersServeSubcommand(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()

	cmd, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", cmd.Name())
}

func TestNewRootCmdBindsPersistentFlags(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()

	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
