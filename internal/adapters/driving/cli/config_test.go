package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

func TestConfigCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"])
	assert.True(t, names["set"])
	assert.True(t, names["path"])
}

func TestConfigShowCmd(t *testing.T) {
	setupTestServices(t, nil)

	out, err := executeCommand(t, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "search.backend")
	assert.Contains(t, out, "opensearch")
	assert.Contains(t, out, "image-embeddings")
	assert.Contains(t, out, "********")
}

func TestConfigCmd_DefaultsToShow(t *testing.T) {
	setupTestServices(t, nil)

	out, err := executeCommand(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "ingest.chunk_size")
}

func TestConfigSetCmd(t *testing.T) {
	env := setupTestServices(t, nil)

	out, err := executeCommand(t, "config", "set", "ingest.chunk_size", "75")
	require.NoError(t, err)
	assert.Contains(t, out, "ingest.chunk_size = 75")

	raw, ok := env.store.Get("ingest.chunk_size")
	require.True(t, ok)
	assert.EqualValues(t, 75, raw)
}

func TestConfigSetCmd_MasksSecret(t *testing.T) {
	setupTestServices(t, nil)

	out, err := executeCommand(t, "config", "set", "search.password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "search.password = ********")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigSetCmd_Invalid(t *testing.T) {
	setupTestServices(t, nil)

	_, err := executeCommand(t, "config", "set", "search.backend", "solr")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = executeCommand(t, "config", "set", "only-key")
	assert.Error(t, err)
}

func TestConfigPathCmd(t *testing.T) {
	env := setupTestServices(t, nil)

	out, err := executeCommand(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, env.store.Path())
}

func TestConfigCmd_NotConfigured(t *testing.T) {
	setupTestServices(t, nil)
	settingsService = nil

	_, err := executeCommand(t, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings service not configured")
}
