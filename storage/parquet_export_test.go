package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

func TestExportTicksAsParquet_NoTicksForDayIsNoOp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	err := store.ExportTicksAsParquet(ctx, dir, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no partition directory should be created when there is nothing to export")
}

func TestExportTicksAsParquet_WritesHivePartitionedFile(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC)
	tick, err := domain.NewTick("FPT", vo.NewPrice(90000), 1000, vo.HOSE, day)
	require.NoError(t, err)
	require.NoError(t, store.InsertBatch(ctx, []domain.Tick{tick}))

	dir := t.TempDir()
	require.NoError(t, store.ExportTicksAsParquet(ctx, dir, day))

	destPath := filepath.Join(dir, "year=2026", "month=07", "day=30", "ticks.parquet")
	assert.FileExists(t, destPath)
}

func TestQueryTicksForDay_ExcludesTicksOutsideTheDayWindow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	before := day.Add(-25 * time.Hour)
	after := day.Add(25 * time.Hour)

	inDay, err := domain.NewTick("FPT", vo.NewPrice(90000), 100, vo.HOSE, day)
	require.NoError(t, err)
	outBefore, err := domain.NewTick("FPT", vo.NewPrice(89000), 100, vo.HOSE, before)
	require.NoError(t, err)
	outAfter, err := domain.NewTick("FPT", vo.NewPrice(91000), 100, vo.HOSE, after)
	require.NoError(t, err)

	require.NoError(t, store.InsertBatch(ctx, []domain.Tick{inDay, outBefore, outAfter}))

	ticks, err := store.queryTicksForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, vo.Symbol("FPT"), ticks[0].Symbol)
}
