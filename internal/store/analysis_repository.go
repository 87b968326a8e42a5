package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// GetAnalysis retrieves a cached narrative, nil when absent. Code is ""
// for day-level analyses.
func (s *Store) GetAnalysis(ctx context.Context, date, kind, code string) (*contracts.AnalysisSummary, error) {
	query := `
		SELECT trade_date, kind, code, content, updated_at
		FROM pool.ai_analysis
		WHERE trade_date = $1::date AND kind = $2 AND code = $3
	`

	var summary contracts.AnalysisSummary
	var tradeDate time.Time
	err := s.pool.QueryRow(ctx, query, date, kind, code).Scan(
		&tradeDate, &summary.Kind, &summary.Code, &summary.Content, &summary.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s/%s: %w", date, kind, err)
	}

	summary.Date = tradeDate.Format(contracts.DateFormat)
	return &summary, nil
}

// ListAnalyses returns every stored narrative, for snapshot export.
func (s *Store) ListAnalyses(ctx context.Context) ([]*contracts.AnalysisSummary, error) {
	query := `
		SELECT trade_date, kind, code, content, updated_at
		FROM pool.ai_analysis
		ORDER BY trade_date ASC, kind ASC, code ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var summaries []*contracts.AnalysisSummary
	for rows.Next() {
		var summary contracts.AnalysisSummary
		var tradeDate time.Time
		if err := rows.Scan(&tradeDate, &summary.Kind, &summary.Code, &summary.Content, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		summary.Date = tradeDate.Format(contracts.DateFormat)
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

func putAnalysis(ctx context.Context, q querier, summary *contracts.AnalysisSummary) error {
	query := `
		INSERT INTO pool.ai_analysis (trade_date, kind, code, content, updated_at)
		VALUES ($1::date, $2, $3, $4, $5)
		ON CONFLICT (trade_date, kind, code) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query, summary.Date, summary.Kind, summary.Code, summary.Content, summary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put analysis %s/%s: %w", summary.Date, summary.Kind, err)
	}
	return nil
}

// PutAnalysis stores or overwrites a narrative blob.
func (s *Store) PutAnalysis(ctx context.Context, summary *contracts.AnalysisSummary) error {
	return putAnalysis(ctx, s.pool, summary)
}

// PutAnalysis stores a narrative inside a transaction (snapshot restore).
func (t *recordTx) PutAnalysis(ctx context.Context, summary *contracts.AnalysisSummary) error {
	return putAnalysis(ctx, t.q, summary)
}
