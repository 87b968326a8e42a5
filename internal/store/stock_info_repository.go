package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// GetStockInfo retrieves the latest known identity for a code.
// Returns nil when the code has never been imported.
func (s *Store) GetStockInfo(ctx context.Context, code string) (*contracts.StockInfo, error) {
	query := `
		SELECT code, name, industry, region, updated_at
		FROM pool.stock_info
		WHERE code = $1
	`

	var info contracts.StockInfo
	err := s.pool.QueryRow(ctx, query, code).Scan(
		&info.Code, &info.Name, &info.Industry, &info.Region, &info.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock info %s: %w", code, err)
	}
	return &info, nil
}

// ListStockInfos returns all known tickers ordered by code.
func (s *Store) ListStockInfos(ctx context.Context) ([]*contracts.StockInfo, error) {
	query := `
		SELECT code, name, industry, region, updated_at
		FROM pool.stock_info
		ORDER BY code ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stock infos: %w", err)
	}
	defer rows.Close()

	var infos []*contracts.StockInfo
	for rows.Next() {
		var info contracts.StockInfo
		if err := rows.Scan(&info.Code, &info.Name, &info.Industry, &info.Region, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock info: %w", err)
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

// UpsertStockInfo overwrites name/industry/region and refreshes the
// update timestamp for a code.
func (t *recordTx) UpsertStockInfo(ctx context.Context, info *contracts.StockInfo) error {
	query := `
		INSERT INTO pool.stock_info (code, name, industry, region, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			region = EXCLUDED.region,
			updated_at = EXCLUDED.updated_at
	`

	_, err := t.q.Exec(ctx, query, info.Code, info.Name, info.Industry, info.Region, info.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert stock info %s: %w", info.Code, err)
	}
	return nil
}
