package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := GetRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "study-coach", cmd.Use)
	assert.Equal(t, version, cmd.Version)
}

func TestRootCommandFlags(t *testing.T) {
	cmd := GetRootCmd()
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestServeCommandRegistered(t *testing.T) {
	var found bool
	for _, sub := range GetRootCmd().Commands() {
		if sub.Use == "serve" {
			found = true
		}
	}
	assert.True(t, found, "serve command should be registered")
}
