package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/storetest"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

type fakeBackup struct {
	calls int
	err   error
}

func (b *fakeBackup) Snapshot(ctx context.Context) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return "snapshot.json", nil
}

func stock(code, name string, change float64, formulas ...string) *contracts.DailyRecord {
	return &contracts.DailyRecord{
		Code:     code,
		Name:     name,
		Change:   change,
		Formulas: formulas,
	}
}

func TestImportDay_InsertThenUpdate(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	stocks := []*contracts.DailyRecord{
		stock("000001", "平安银行", 2.1, "放量突破"),
		stock("600519", "贵州茅台", -0.5, "均线多头"),
		stock("300750", "宁德时代", 5.3, "放量突破", "均线多头"),
	}

	res, err := imp.ImportDay(ctx, "2026-08-21", stocks, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 0, res.Updated)

	// Re-importing the identical set updates every record.
	res, err = imp.ImportDay(ctx, "2026-08-21", stocks, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 3, res.Updated)
}

func TestImportDay_CreatedAtPreserved(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	first := time.Date(2026, 8, 21, 16, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	imp.now = func() time.Time { return first }
	_, err := imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{stock("000001", "平安银行", 1.0, "F1")}, nil, Options{})
	require.NoError(t, err)

	imp.now = func() time.Time { return second }
	_, err = imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{stock("000001", "平安银行", 2.0, "F2")}, nil, Options{})
	require.NoError(t, err)

	rec, err := store.GetDailyRecord(ctx, "000001", "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first, rec.CreatedAt, "creation timestamp must survive re-import")
	assert.Equal(t, 2.0, rec.Change, "every other field is last-write-wins")
	assert.Equal(t, []string{"F2"}, rec.Formulas)
}

func TestImportDay_DateMetaWholesale(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	index := &contracts.IndexSnapshot{Code: "999999", Name: "上证指数", Price: 3205.4, Change: 0.62}
	stocks := []*contracts.DailyRecord{
		stock("000001", "平安银行", 2.1, "放量突破"),
		stock("000001", "平安银行", 2.1, "均线多头"), // duplicate code, counted twice
		stock("600519", "贵州茅台", -0.5, "均线多头"),
	}

	_, err := imp.ImportDay(ctx, "2026-08-21", stocks, index, Options{})
	require.NoError(t, err)

	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, meta)

	// Stock count is the input length, not a deduplicated count.
	assert.Equal(t, 3, meta.StockCount)
	assert.Equal(t, 2, meta.FormulaCount)
	assert.Equal(t, []string{"均线多头", "放量突破"}, meta.Formulas)
	require.NotNil(t, meta.Index)
	assert.Equal(t, "999999", meta.Index.Code)
}

func TestImportDay_EmptyListStillWritesMeta(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	res, err := imp.ImportDay(ctx, "2026-08-21", nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 0, res.Updated)

	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 0, meta.StockCount)
	assert.Equal(t, 0, meta.FormulaCount)
}

func TestImportDay_MergeForcesDateAndKeepsIndex(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	index := &contracts.IndexSnapshot{Code: "999999", Name: "上证指数", Price: 3205.4, Change: 0.62}
	_, err := imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{stock("000001", "平安银行", 1.0, "F1")}, index, Options{})
	require.NoError(t, err)

	// Merge a bundle dated elsewhere, carrying a different index snapshot.
	otherIndex := &contracts.IndexSnapshot{Code: "999998", Name: "深证成指", Price: 10250.1, Change: -0.3}
	_, err = imp.ImportDay(ctx, "2026-08-22", []*contracts.DailyRecord{stock("600519", "贵州茅台", 0.8, "F2")}, otherIndex,
		Options{MergeIntoDate: "2026-08-21"})
	require.NoError(t, err)

	// Row landed on the merge date, not the parsed date.
	rec, err := store.GetDailyRecord(ctx, "600519", "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, rec)

	none, err := store.GetDailyRecord(ctx, "600519", "2026-08-22")
	require.NoError(t, err)
	assert.Nil(t, none)

	// The index benchmark is never touched on merge.
	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, meta.Index)
	assert.Equal(t, "999999", meta.Index.Code)
}

func TestImportDay_MergeRecomputesMetaFromFullDay(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	_, err := imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{
		stock("000001", "平安银行", 1.0, "F1"),
		stock("600519", "贵州茅台", 0.8, "F2"),
	}, nil, Options{})
	require.NoError(t, err)

	// Merging one late addition must not shrink the day to a single stock.
	_, err = imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{
		stock("300750", "宁德时代", 3.0, "F3"),
	}, nil, Options{MergeIntoDate: "2026-08-21"})
	require.NoError(t, err)

	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 3, meta.StockCount)
	assert.Equal(t, 3, meta.FormulaCount)
	assert.Equal(t, []string{"F1", "F2", "F3"}, meta.Formulas)

	// A merge that overwrites an existing stock replaces its formulas in
	// the union instead of accumulating stale ones.
	_, err = imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{
		stock("600519", "贵州茅台", 0.8, "F4"),
	}, nil, Options{MergeIntoDate: "2026-08-21"})
	require.NoError(t, err)

	meta, err = store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	assert.Equal(t, 3, meta.StockCount)
	assert.Equal(t, []string{"F1", "F3", "F4"}, meta.Formulas)
}

func TestImportDay_FailureLeavesStoreUntouched(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	_, err := imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{stock("000001", "平安银行", 1.0, "F1")}, nil, Options{})
	require.NoError(t, err)

	store.FailWrites = errors.New("disk full")
	_, err = imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{
		stock("000001", "平安银行", 9.9, "F1"),
		stock("600519", "贵州茅台", 1.0, "F2"),
	}, nil, Options{})
	require.Error(t, err)
	store.FailWrites = nil

	// DateMeta still matches the surviving record set.
	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 1, meta.StockCount)

	rec, err := store.GetDailyRecord(ctx, "000001", "2026-08-21")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Change)
}

func TestImportDay_BackupTriggeredOnlyOnInserts(t *testing.T) {
	store := storetest.New()
	backup := &fakeBackup{}
	imp := New(store, backup, logger.NewNop())
	ctx := context.Background()

	stocks := []*contracts.DailyRecord{stock("000001", "平安银行", 1.0, "F1")}

	_, err := imp.ImportDay(ctx, "2026-08-21", stocks, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, backup.calls)

	// Pure update run: no new rows, no snapshot.
	_, err = imp.ImportDay(ctx, "2026-08-21", stocks, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, backup.calls)
}

func TestImportDay_BackupFailureNotEscalated(t *testing.T) {
	store := storetest.New()
	backup := &fakeBackup{err: errors.New("sink unavailable")}
	imp := New(store, backup, logger.NewNop())
	ctx := context.Background()

	res, err := imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{stock("000001", "平安银行", 1.0, "F1")}, nil, Options{})
	require.NoError(t, err, "backup failure must not fail the import")
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, backup.calls)
}

func TestDeleteDate(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	_, err := imp.ImportDay(ctx, "2026-08-21", []*contracts.DailyRecord{
		stock("000001", "平安银行", 1.0, "F1"),
		stock("600519", "贵州茅台", 2.0, "F1"),
	}, nil, Options{})
	require.NoError(t, err)

	deleted, err := imp.DeleteDate(ctx, "2026-08-21")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Absence is an empty result, not an error.
	meta, err := store.GetDateMeta(ctx, "2026-08-21")
	require.NoError(t, err)
	assert.Nil(t, meta)

	records, err := store.GetDailyRecordsByDate(ctx, "2026-08-21")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestImportDay_InvalidDate(t *testing.T) {
	imp := New(storetest.New(), nil, logger.NewNop())

	_, err := imp.ImportDay(context.Background(), "2026/08/21", nil, nil, Options{})
	require.Error(t, err)
}

func TestImportFiles_PartialFailure(t *testing.T) {
	store := storetest.New()
	imp := New(store, nil, logger.NewNop())
	ctx := context.Background()

	parser := parserFunc(func(path string) (*contracts.ParsedFile, error) {
		if path == "bad.xls" {
			return nil, errors.New("not a TDX export")
		}
		return &contracts.ParsedFile{
			Date:   "2026-08-21",
			Stocks: []*contracts.DailyRecord{stock("000001", "平安银行", 1.0, "F1")},
		}, nil
	})

	result := imp.ImportFiles(ctx, parser, []string{"good.xls", "bad.xls", "also-good.xls"}, Options{})
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Files, 3)
	assert.True(t, result.Files[0].OK)
	assert.False(t, result.Files[1].OK)
	assert.Contains(t, result.Files[1].Error, "not a TDX export")
	assert.True(t, result.Files[2].OK)
}

type parserFunc func(path string) (*contracts.ParsedFile, error)

func (f parserFunc) ParseFile(path string) (*contracts.ParsedFile, error) { return f(path) }
