package contracts

import "context"

// RecordStore is the persistence boundary for the four entity collections.
// The import engine is the only writer; every other component is a
// read-only consumer. Queries for a missing date return nil, not an error.
type RecordStore interface {
	// WithinTx runs fn inside one transaction. All writes of one import
	// go through a single call so a partial failure leaves nothing behind.
	WithinTx(ctx context.Context, fn func(tx RecordTx) error) error

	GetStockInfo(ctx context.Context, code string) (*StockInfo, error)
	ListStockInfos(ctx context.Context) ([]*StockInfo, error)

	GetDailyRecord(ctx context.Context, code, date string) (*DailyRecord, error)
	GetDailyRecordsByDate(ctx context.Context, date string) ([]*DailyRecord, error)
	// GetDailyRecordsByCodes returns each code's records sorted ascending by date.
	GetDailyRecordsByCodes(ctx context.Context, codes []string) (map[string][]*DailyRecord, error)
	ListDailyRecords(ctx context.Context) ([]*DailyRecord, error)

	GetDateMeta(ctx context.Context, date string) (*DateMeta, error)
	ListDateMetas(ctx context.Context) ([]*DateMeta, error)

	GetAnalysis(ctx context.Context, date, kind, code string) (*AnalysisSummary, error)
	PutAnalysis(ctx context.Context, summary *AnalysisSummary) error
	ListAnalyses(ctx context.Context) ([]*AnalysisSummary, error)

	// Reset clears all four collections.
	Reset(ctx context.Context) error
}

// RecordTx is the write surface available inside a store transaction.
type RecordTx interface {
	UpsertStockInfo(ctx context.Context, info *StockInfo) error

	HasDailyRecord(ctx context.Context, code, date string) (bool, error)
	// PutDailyRecord inserts or overwrites a record. On overwrite every
	// field is replaced except the original CreatedAt.
	PutDailyRecord(ctx context.Context, rec *DailyRecord) error
	DeleteDailyRecordsByDate(ctx context.Context, date string) (int64, error)

	PutDateMeta(ctx context.Context, meta *DateMeta) error
	DeleteDateMeta(ctx context.Context, date string) error

	PutAnalysis(ctx context.Context, summary *AnalysisSummary) error
}

// BackupSink snapshots the whole store to a secondary durable location.
// Implementations must be idempotent; callers treat failures as non-fatal.
type BackupSink interface {
	Snapshot(ctx context.Context) (string, error)
}
