package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".imgsearch", "config.toml"), store.Path())
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	_, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("search.host", "localhost"))

	val, ok := store.Get("search.host")
	assert.True(t, ok)
	assert.Equal(t, "localhost", val)

	_, ok = store.Get("search.port")
	assert.False(t, ok)
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("search.host", "localhost"))
	require.NoError(t, store.Set("search.port", 9200))
	require.NoError(t, store.Set("ingest.chunk_size", 50))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "[search]")
	assert.Contains(t, content, "[ingest]")
	assert.Contains(t, content, "chunk_size = 50")
	assert.False(t, strings.Contains(content, "'search.host'"), "keys must not be quoted")
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("search.host", "search.internal"))
	require.NoError(t, store.Set("search.port", 9300))
	require.NoError(t, store.Set("search.compress", false))
	require.NoError(t, store.Set("model.requests_per_second", 2.5))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	host, _ := reloaded.Get("search.host")
	assert.Equal(t, "search.internal", host)

	port, _ := reloaded.Get("search.port")
	assert.Equal(t, int64(9300), port)

	compress, _ := reloaded.Get("search.compress")
	assert.Equal(t, false, compress)

	rps, _ := reloaded.Get("model.requests_per_second")
	assert.Equal(t, 2.5, rps)

	assert.Equal(t, []string{"model.requests_per_second", "search.compress", "search.host", "search.port"}, reloaded.Keys())
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[search]
backend = "sqlite"
index_name = "photos"

[ingest]
chunk_size = 100
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	backend, ok := store.Get("search.backend")
	require.True(t, ok)
	assert.Equal(t, "sqlite", backend)

	chunk, ok := store.Get("ingest.chunk_size")
	require.True(t, ok)
	assert.Equal(t, int64(100), chunk)
}

func TestConfigStore_Unset(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("query.k", 3))
	require.NoError(t, store.Unset("query.k"))
	require.NoError(t, store.Unset("query.k"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	_, ok := reloaded.Get("query.k")
	assert.False(t, ok)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("search.password", "secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_ConflictingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("search", "flat"))
	err = store.Set("search.host", "localhost")
	require.Error(t, err)

	_, ok := store.Get("search.host")
	assert.False(t, ok, "failed write must be rolled back")
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	err = store.Set("channel", make(chan int))

	assert.Error(t, err)
	_, ok := store.Get("channel")
	assert.False(t, ok)
}

func TestConfigStore_Set_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
}

func TestConfigStore_Load_InvalidTOML(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("valid", "data"))

	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid toml syntax ][}{"), 0600))

	assert.Error(t, store.Load())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("ingest.workers", i)
			_, _ = store.Get("ingest.workers")
		}()
	}
	wg.Wait()

	_, ok := store.Get("ingest.workers")
	assert.True(t, ok)
}

func TestFlattenAndNestRoundTrip(t *testing.T) {
	flat := map[string]any{
		"a.b.c": 1,
		"a.d":   "x",
		"e":     true,
	}

	nested, err := nestMap(flat)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, nested)

	assert.Equal(t, flat, flattenMap(nested, ""))
}
