package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "init-tables", "demo", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestDemoRunsOffline(t *testing.T) {
	cmd := demoCmd
	cmd.SetContext(context.Background())
	require.NoError(t, runDemo(cmd, nil))
}
