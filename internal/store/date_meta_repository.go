package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

func scanDateMeta(row pgx.Row) (*contracts.DateMeta, error) {
	var meta contracts.DateMeta
	var tradeDate time.Time
	var indexCode, indexName *string
	var indexPrice, indexChange *float64

	err := row.Scan(
		&tradeDate, &meta.StockCount, &meta.FormulaCount, &meta.Formulas,
		&indexCode, &indexName, &indexPrice, &indexChange,
		&meta.ImportedAt,
	)
	if err != nil {
		return nil, err
	}

	meta.Date = tradeDate.Format(contracts.DateFormat)
	if indexCode != nil {
		meta.Index = &contracts.IndexSnapshot{
			Code: *indexCode,
		}
		if indexName != nil {
			meta.Index.Name = *indexName
		}
		if indexPrice != nil {
			meta.Index.Price = *indexPrice
		}
		if indexChange != nil {
			meta.Index.Change = *indexChange
		}
	}
	return &meta, nil
}

// GetDateMeta retrieves the summary for one date, nil when absent.
func (s *Store) GetDateMeta(ctx context.Context, date string) (*contracts.DateMeta, error) {
	query := `
		SELECT trade_date, stock_count, formula_count, formulas,
		       index_code, index_name, index_price, index_change, imported_at
		FROM pool.date_meta
		WHERE trade_date = $1::date
	`

	meta, err := scanDateMeta(s.pool.QueryRow(ctx, query, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get date meta %s: %w", date, err)
	}
	return meta, nil
}

// ListDateMetas returns all imported dates ascending.
func (s *Store) ListDateMetas(ctx context.Context) ([]*contracts.DateMeta, error) {
	query := `
		SELECT trade_date, stock_count, formula_count, formulas,
		       index_code, index_name, index_price, index_change, imported_at
		FROM pool.date_meta
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list date metas: %w", err)
	}
	defer rows.Close()

	var metas []*contracts.DateMeta
	for rows.Next() {
		meta, err := scanDateMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan date meta: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// PutDateMeta overwrites the summary for a date wholesale.
func (t *recordTx) PutDateMeta(ctx context.Context, meta *contracts.DateMeta) error {
	query := `
		INSERT INTO pool.date_meta (
			trade_date, stock_count, formula_count, formulas,
			index_code, index_name, index_price, index_change, imported_at
		)
		VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trade_date) DO UPDATE SET
			stock_count = EXCLUDED.stock_count,
			formula_count = EXCLUDED.formula_count,
			formulas = EXCLUDED.formulas,
			index_code = EXCLUDED.index_code,
			index_name = EXCLUDED.index_name,
			index_price = EXCLUDED.index_price,
			index_change = EXCLUDED.index_change,
			imported_at = EXCLUDED.imported_at
	`

	formulas := meta.Formulas
	if formulas == nil {
		formulas = []string{}
	}

	var indexCode, indexName *string
	var indexPrice, indexChange *float64
	if meta.Index != nil {
		indexCode = &meta.Index.Code
		indexName = &meta.Index.Name
		indexPrice = &meta.Index.Price
		indexChange = &meta.Index.Change
	}

	_, err := t.q.Exec(ctx, query,
		meta.Date, meta.StockCount, meta.FormulaCount, formulas,
		indexCode, indexName, indexPrice, indexChange, meta.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("put date meta %s: %w", meta.Date, err)
	}
	return nil
}

// DeleteDateMeta removes the summary for one date.
func (t *recordTx) DeleteDateMeta(ctx context.Context, date string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM pool.date_meta WHERE trade_date = $1::date`, date)
	if err != nil {
		return fmt.Errorf("delete date meta %s: %w", date, err)
	}
	return nil
}
