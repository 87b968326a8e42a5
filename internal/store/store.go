package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// Store implements contracts.RecordStore on PostgreSQL. It exclusively
// owns the four entity collections; the import engine is the only
// component that writes through it.
type Store struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: log,
	}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so read and write
// SQL can be shared between the store and its transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WithinTx runs fn inside one transaction. A failure anywhere rolls the
// whole batch back, keeping DateMeta consistent with the record set.
func (s *Store) WithinTx(ctx context.Context, fn func(tx contracts.RecordTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&recordTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Reset clears all four collections.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		TRUNCATE pool.daily_records, pool.date_meta, pool.ai_analysis, pool.stock_info
	`)
	if err != nil {
		return fmt.Errorf("reset store: %w", err)
	}

	s.logger.Warn("Record store reset, all collections cleared")
	return nil
}

// recordTx implements contracts.RecordTx over a pgx transaction.
type recordTx struct {
	q pgx.Tx
}

var _ contracts.RecordStore = (*Store)(nil)
var _ contracts.RecordTx = (*recordTx)(nil)
