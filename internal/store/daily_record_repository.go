package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

const dailyRecordColumns = `
	code, trade_date, name, industry, region,
	open_price, high_price, low_price, close_price,
	change_pct, volume, turnover_pct, amplitude_pct,
	pe, pe_ttm, pb, ps, market_cap,
	change_3d, change_5d, change_10d, change_20d, change_60d, change_year,
	signals,
	gross_margin, net_margin, debt_ratio, revenue_yoy, profit_yoy, dividend_yield,
	formulas, created_at
`

func scanDailyRecord(row pgx.Row) (*contracts.DailyRecord, error) {
	var rec contracts.DailyRecord
	var tradeDate time.Time

	err := row.Scan(
		&rec.Code, &tradeDate, &rec.Name, &rec.Industry, &rec.Region,
		&rec.Open, &rec.High, &rec.Low, &rec.Close,
		&rec.Change, &rec.Volume, &rec.Turnover, &rec.Amplitude,
		&rec.PE, &rec.PETTM, &rec.PB, &rec.PS, &rec.MarketCap,
		&rec.Change3d, &rec.Change5d, &rec.Change10d, &rec.Change20d, &rec.Change60d, &rec.ChangeYear,
		&rec.Signals,
		&rec.GrossMargin, &rec.NetMargin, &rec.DebtRatio, &rec.RevenueYoY, &rec.ProfitYoY, &rec.DividendYield,
		&rec.Formulas, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Date = tradeDate.Format(contracts.DateFormat)
	return &rec, nil
}

func collectDailyRecords(rows pgx.Rows) ([]*contracts.DailyRecord, error) {
	defer rows.Close()

	var records []*contracts.DailyRecord
	for rows.Next() {
		rec, err := scanDailyRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetDailyRecord retrieves one stock's snapshot for one date.
// Returns nil when no such record exists.
func (s *Store) GetDailyRecord(ctx context.Context, code, date string) (*contracts.DailyRecord, error) {
	query := `SELECT ` + dailyRecordColumns + `
		FROM pool.daily_records
		WHERE code = $1 AND trade_date = $2::date
	`

	rec, err := scanDailyRecord(s.pool.QueryRow(ctx, query, code, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily record %s/%s: %w", code, date, err)
	}
	return rec, nil
}

// GetDailyRecordsByDate retrieves all records for one date.
func (s *Store) GetDailyRecordsByDate(ctx context.Context, date string) ([]*contracts.DailyRecord, error) {
	query := `SELECT ` + dailyRecordColumns + `
		FROM pool.daily_records
		WHERE trade_date = $1::date
		ORDER BY code ASC
	`

	rows, err := s.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("get daily records for %s: %w", date, err)
	}
	return collectDailyRecords(rows)
}

// GetDailyRecordsByCodes retrieves each code's full time series, sorted
// ascending by date.
func (s *Store) GetDailyRecordsByCodes(ctx context.Context, codes []string) (map[string][]*contracts.DailyRecord, error) {
	result := make(map[string][]*contracts.DailyRecord, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	query := `SELECT ` + dailyRecordColumns + `
		FROM pool.daily_records
		WHERE code = ANY($1)
		ORDER BY code ASC, trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("get daily records by codes: %w", err)
	}

	records, err := collectDailyRecords(rows)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		result[rec.Code] = append(result[rec.Code], rec)
	}
	return result, nil
}

// ListDailyRecords returns every stored record, ordered by date then code.
func (s *Store) ListDailyRecords(ctx context.Context) ([]*contracts.DailyRecord, error) {
	query := `SELECT ` + dailyRecordColumns + `
		FROM pool.daily_records
		ORDER BY trade_date ASC, code ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list daily records: %w", err)
	}
	return collectDailyRecords(rows)
}

// HasDailyRecord reports whether a record exists for (code, date).
func (t *recordTx) HasDailyRecord(ctx context.Context, code, date string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pool.daily_records WHERE code = $1 AND trade_date = $2::date
		)
	`, code, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check daily record %s/%s: %w", code, date, err)
	}
	return exists, nil
}

// PutDailyRecord inserts or overwrites a record. On conflict every field
// is replaced except created_at, which keeps its first-write value.
func (t *recordTx) PutDailyRecord(ctx context.Context, rec *contracts.DailyRecord) error {
	query := `
		INSERT INTO pool.daily_records (` + dailyRecordColumns + `)
		VALUES (
			$1, $2::date, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24,
			$25,
			$26, $27, $28, $29, $30, $31,
			$32, $33
		)
		ON CONFLICT (code, trade_date) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			region = EXCLUDED.region,
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			change_pct = EXCLUDED.change_pct,
			volume = EXCLUDED.volume,
			turnover_pct = EXCLUDED.turnover_pct,
			amplitude_pct = EXCLUDED.amplitude_pct,
			pe = EXCLUDED.pe,
			pe_ttm = EXCLUDED.pe_ttm,
			pb = EXCLUDED.pb,
			ps = EXCLUDED.ps,
			market_cap = EXCLUDED.market_cap,
			change_3d = EXCLUDED.change_3d,
			change_5d = EXCLUDED.change_5d,
			change_10d = EXCLUDED.change_10d,
			change_20d = EXCLUDED.change_20d,
			change_60d = EXCLUDED.change_60d,
			change_year = EXCLUDED.change_year,
			signals = EXCLUDED.signals,
			gross_margin = EXCLUDED.gross_margin,
			net_margin = EXCLUDED.net_margin,
			debt_ratio = EXCLUDED.debt_ratio,
			revenue_yoy = EXCLUDED.revenue_yoy,
			profit_yoy = EXCLUDED.profit_yoy,
			dividend_yield = EXCLUDED.dividend_yield,
			formulas = EXCLUDED.formulas
	`

	signals := rec.Signals
	if signals == nil {
		signals = []string{}
	}
	formulas := rec.Formulas
	if formulas == nil {
		formulas = []string{}
	}

	_, err := t.q.Exec(ctx, query,
		rec.Code, rec.Date, rec.Name, rec.Industry, rec.Region,
		rec.Open, rec.High, rec.Low, rec.Close,
		rec.Change, rec.Volume, rec.Turnover, rec.Amplitude,
		rec.PE, rec.PETTM, rec.PB, rec.PS, rec.MarketCap,
		rec.Change3d, rec.Change5d, rec.Change10d, rec.Change20d, rec.Change60d, rec.ChangeYear,
		signals,
		rec.GrossMargin, rec.NetMargin, rec.DebtRatio, rec.RevenueYoY, rec.ProfitYoY, rec.DividendYield,
		formulas, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put daily record %s/%s: %w", rec.Code, rec.Date, err)
	}
	return nil
}

// DeleteDailyRecordsByDate removes all records for one date and returns
// how many were deleted.
func (t *recordTx) DeleteDailyRecordsByDate(ctx context.Context, date string) (int64, error) {
	tag, err := t.q.Exec(ctx, `DELETE FROM pool.daily_records WHERE trade_date = $1::date`, date)
	if err != nil {
		return 0, fmt.Errorf("delete daily records for %s: %w", date, err)
	}
	return tag.RowsAffected(), nil
}
