package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/storetest"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

func seed(t *testing.T, store *storetest.MemStore) {
	t.Helper()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx contracts.RecordTx) error {
		if err := tx.UpsertStockInfo(ctx, &contracts.StockInfo{Code: "000001", Name: "平安银行", Industry: "银行"}); err != nil {
			return err
		}
		if err := tx.PutDailyRecord(ctx, &contracts.DailyRecord{
			Code: "000001", Date: "2026-08-21", Name: "平安银行",
			Close: 11.2, Change: 2.35, Formulas: []string{"放量突破"},
			CreatedAt: time.Date(2026, 8, 21, 16, 0, 0, 0, time.UTC),
		}); err != nil {
			return err
		}
		return tx.PutDateMeta(ctx, &contracts.DateMeta{
			Date: "2026-08-21", StockCount: 1, FormulaCount: 1, Formulas: []string{"放量突破"},
		})
	})
	require.NoError(t, err)

	require.NoError(t, store.PutAnalysis(ctx, &contracts.AnalysisSummary{
		Date: "2026-08-21", Kind: "daily", Content: "窄幅震荡",
	}))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	seed(t, store)

	m := New(store, t.TempDir(), 0, logger.NewNop())
	path, err := m.Snapshot(ctx)
	require.NoError(t, err)
	require.FileExists(t, path)

	// Wipe and restore into a fresh manager over the same (now empty) store.
	require.NoError(t, store.Reset(ctx))
	records, err := store.ListDailyRecords(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	require.NoError(t, m.Restore(ctx, path))

	rec, err := store.GetDailyRecord(ctx, "000001", "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 11.2, rec.Close)
	assert.Equal(t, []string{"放量突破"}, rec.Formulas)
	assert.Equal(t, time.Date(2026, 8, 21, 16, 0, 0, 0, time.UTC), rec.CreatedAt)

	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 1, meta.StockCount)

	info, err := store.GetStockInfo(ctx, "000001")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "平安银行", info.Name)

	blob, err := store.GetAnalysis(ctx, "2026-08-21", "daily", "")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, "窄幅震荡", blob.Content)
}

func TestSnapshotIsAtomicFile(t *testing.T) {
	store := storetest.New()
	seed(t, store)
	dir := t.TempDir()

	m := New(store, dir, 0, logger.NewNop())
	_, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Regexp(t, `^snapshot-\d{8}-\d{6}\.json$`, entries[0].Name())
}

func TestPruneKeepsNewest(t *testing.T) {
	store := storetest.New()
	dir := t.TempDir()
	m := New(store, dir, 0, logger.NewNop())

	base := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		m.now = func() time.Time { return ts }
		_, err := m.Snapshot(context.Background())
		require.NoError(t, err)
	}

	require.NoError(t, m.Prune(2))

	paths, err := m.List()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "snapshot-20260821-100400.json", filepath.Base(paths[0]))
	assert.Equal(t, "snapshot-20260821-100300.json", filepath.Base(paths[1]))
}

func TestLatestEmptyDir(t *testing.T) {
	m := New(storetest.New(), filepath.Join(t.TempDir(), "missing"), 0, logger.NewNop())

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestRestoreBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot-garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m := New(storetest.New(), dir, 0, logger.NewNop())
	require.Error(t, m.Restore(context.Background(), path))
}
