package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

func testReport(id string, started time.Time) domain.IngestReport {
	return domain.IngestReport{
		RunID:           id,
		IndexName:       "image-embeddings",
		Model:           "clip-ViT-L-14",
		State:           domain.StateDone,
		StartedAt:       started,
		EmbedDuration:   3 * time.Second,
		ImagesFound:     3,
		ImagesProcessed: 2,
		Failures:        []domain.ImageFailure{{Path: "bad.jpg", Error: "decode"}},
		Chunks:          []domain.ChunkResult{{Number: 1, Documents: 2}},
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	runs := setupTestStore(t).RunStore()
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, runs.Save(ctx, testReport("run-1", started)))

	got, err := runs.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, domain.StateDone, got.State)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 3*time.Second, got.EmbedDuration)
	assert.Equal(t, 2, got.DocumentsLoaded())
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "bad.jpg", got.Failures[0].Path)
}

func TestRunStore_SaveReplaces(t *testing.T) {
	runs := setupTestStore(t).RunStore()
	ctx := context.Background()

	report := testReport("run-1", time.Now().UTC())
	report.State = domain.StateBulkLoading
	require.NoError(t, runs.Save(ctx, report))

	report.State = domain.StateFailed
	report.Error = "bulk chunk 2: boom"
	require.NoError(t, runs.Save(ctx, report))

	got, err := runs.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.Equal(t, "bulk chunk 2: boom", got.Error)

	all, err := runs.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunStore_GetMissing(t *testing.T) {
	_, err := setupTestStore(t).RunStore().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStore_SaveWithoutID(t *testing.T) {
	err := setupTestStore(t).RunStore().Save(context.Background(), domain.IngestReport{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	runs := setupTestStore(t).RunStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, runs.Save(ctx, testReport("old", base)))
	require.NoError(t, runs.Save(ctx, testReport("new", base.Add(2*time.Hour))))
	require.NoError(t, runs.Save(ctx, testReport("mid", base.Add(time.Hour))))

	all, err := runs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	limited, err := runs.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
