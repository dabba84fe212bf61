// -- cmd/root_test.go --
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootHasFillSubcommand(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "fill")
}

func TestFillCommandFlags(t *testing.T) {
	c := newFillCmd()

	require.NotNil(t, c.Flags().Lookup("profile"))
	require.NotNil(t, c.Flags().Lookup("mappings-dir"))
	require.NotNil(t, c.Flags().Lookup("headless"))

	// At least one URL argument is required.
	err := c.Args(c, []string{})
	assert.Error(t, err)
	assert.NoError(t, c.Args(c, []string{"https://example.com"}))
}
