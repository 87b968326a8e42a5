package importer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// Importer is the sole writer of the record store. One call processes one
// day's stock list inside a single transaction; callers serialize calls.
type Importer struct {
	store  contracts.RecordStore
	backup contracts.BackupSink // optional, best-effort
	logger *logger.Logger
	now    func() time.Time
}

// New creates an importer. backup may be nil.
func New(store contracts.RecordStore, backup contracts.BackupSink, log *logger.Logger) *Importer {
	return &Importer{
		store:  store,
		backup: backup,
		logger: log,
		now:    time.Now,
	}
}

// Options control a single import call.
type Options struct {
	// MergeIntoDate forces every row to the given date regardless of the
	// date carried by the parsed data, and suppresses the index benchmark
	// update. Empty means a normal import.
	MergeIntoDate string
}

// ImportDay merges one day's stock list into the store.
//
// Per stock: StockInfo is upserted, then the DailyRecord for (code, date)
// is written whole; this call's bundle always wins, field by field, except
// the original creation timestamp. After all stocks the DateMeta for the
// date is recomputed wholesale. StockCount is the length of the input
// list, duplicates included; in merge mode it is instead recomputed from
// the date's full record set so a small merge cannot shrink the meta.
func (i *Importer) ImportDay(ctx context.Context, date string, stocks []*contracts.DailyRecord, index *contracts.IndexSnapshot, opts Options) (*contracts.ImportResult, error) {
	if _, err := time.Parse(contracts.DateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	merge := opts.MergeIntoDate != ""
	if merge {
		date = opts.MergeIntoDate
		if _, err := time.Parse(contracts.DateFormat, date); err != nil {
			return nil, fmt.Errorf("invalid merge date %q: %w", date, err)
		}
	}

	now := i.now()
	result := &contracts.ImportResult{}

	// On merge the index benchmark is never touched; carry the stored one.
	// Meta is also recomputed from the full post-merge record set, not from
	// this call's input alone, so adding one stock to a 50-stock day does
	// not shrink its StockCount to 1.
	var mergedFormulas map[string][]string
	if merge {
		existing, err := i.store.GetDateMeta(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("load date meta for merge: %w", err)
		}
		if existing != nil {
			index = existing.Index
		} else {
			index = nil
		}

		records, err := i.store.GetDailyRecordsByDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("load records for merge: %w", err)
		}
		mergedFormulas = make(map[string][]string, len(records)+len(stocks))
		for _, rec := range records {
			mergedFormulas[rec.Code] = rec.Formulas
		}
	}

	err := i.store.WithinTx(ctx, func(tx contracts.RecordTx) error {
		formulaSet := make(map[string]struct{})

		for _, stock := range stocks {
			if stock.Code == "" {
				return fmt.Errorf("stock with empty code in import for %s", date)
			}

			if err := tx.UpsertStockInfo(ctx, &contracts.StockInfo{
				Code:      stock.Code,
				Name:      stock.Name,
				Industry:  stock.Industry,
				Region:    stock.Region,
				UpdatedAt: now,
			}); err != nil {
				return err
			}

			exists, err := tx.HasDailyRecord(ctx, stock.Code, date)
			if err != nil {
				return err
			}
			if exists {
				result.Updated++
			} else {
				result.Inserted++
			}

			rec := *stock
			rec.Date = date
			rec.CreatedAt = now // ignored on overwrite, first write wins
			if err := tx.PutDailyRecord(ctx, &rec); err != nil {
				return err
			}

			if merge {
				mergedFormulas[rec.Code] = rec.Formulas
			}
			for _, f := range rec.Formulas {
				formulaSet[f] = struct{}{}
			}
		}

		stockCount := len(stocks)
		if merge {
			// The overwritten records' old formulas are gone; rebuild the
			// union from the post-merge per-code view.
			stockCount = len(mergedFormulas)
			formulaSet = make(map[string]struct{})
			for _, fs := range mergedFormulas {
				for _, f := range fs {
					formulaSet[f] = struct{}{}
				}
			}
		}

		formulas := make([]string, 0, len(formulaSet))
		for f := range formulaSet {
			formulas = append(formulas, f)
		}
		sort.Strings(formulas)

		return tx.PutDateMeta(ctx, &contracts.DateMeta{
			Date:         date,
			StockCount:   stockCount,
			FormulaCount: len(formulas),
			Formulas:     formulas,
			Index:        index,
			ImportedAt:   now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", date, err)
	}

	i.logger.WithFields(map[string]interface{}{
		"date":     date,
		"stocks":   len(stocks),
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"merge":    merge,
	}).Info("Import completed")

	if result.Inserted > 0 {
		i.snapshotBestEffort(ctx)
	}

	return result, nil
}

// ImportFile imports one parsed export file.
func (i *Importer) ImportFile(ctx context.Context, file *contracts.ParsedFile, opts Options) (*contracts.ImportResult, error) {
	return i.ImportDay(ctx, file.Date, file.Stocks, file.Index, opts)
}

// DeleteDate removes all DailyRecords for a date together with its
// DateMeta, then snapshots best-effort.
func (i *Importer) DeleteDate(ctx context.Context, date string) (int64, error) {
	if _, err := time.Parse(contracts.DateFormat, date); err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}

	var deleted int64
	err := i.store.WithinTx(ctx, func(tx contracts.RecordTx) error {
		n, err := tx.DeleteDailyRecordsByDate(ctx, date)
		if err != nil {
			return err
		}
		deleted = n
		return tx.DeleteDateMeta(ctx, date)
	})
	if err != nil {
		return 0, fmt.Errorf("delete date %s: %w", date, err)
	}

	i.logger.WithFields(map[string]interface{}{
		"date":    date,
		"deleted": deleted,
	}).Info("Date deleted")

	i.snapshotBestEffort(ctx)
	return deleted, nil
}

// snapshotBestEffort invokes the backup sink. Failures are logged and
// never escalated to the triggering import or delete.
func (i *Importer) snapshotBestEffort(ctx context.Context) {
	if i.backup == nil {
		return
	}

	path, err := i.backup.Snapshot(ctx)
	if err != nil {
		i.logger.WithError(err).Warn("Store snapshot failed")
		return
	}
	i.logger.WithField("path", path).Debug("Store snapshot written")
}
