package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/adapters/driving/mcp"
)

func TestMCPCmd_Structure(t *testing.T) {
	assert.Equal(t, "mcp", mcpCmd.Use)
	require.Len(t, mcpCmd.Commands(), 1)
	assert.Equal(t, "serve", mcpServeCmd.Use)

	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)
}

func TestMCPServeCmd_RequiresQueryService(t *testing.T) {
	env := setupTestServices(t, &Services{Runs: &mockRunHistory{}})

	_, err := executeCommand(t, "mcp", "serve")
	assert.ErrorIs(t, err, mcp.ErrMissingQueryService)
	assert.Equal(t, 1, env.closed)
}
