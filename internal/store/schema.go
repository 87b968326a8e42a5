package store

import (
	"context"
	"fmt"
)

// schemaDDL creates the store schema. Idempotent; run at startup.
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS pool;

CREATE TABLE IF NOT EXISTS pool.stock_info (
	code       text PRIMARY KEY,
	name       text NOT NULL DEFAULT '',
	industry   text NOT NULL DEFAULT '',
	region     text NOT NULL DEFAULT '',
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool.daily_records (
	code           text NOT NULL,
	trade_date     date NOT NULL,
	name           text NOT NULL DEFAULT '',
	industry       text NOT NULL DEFAULT '',
	region         text NOT NULL DEFAULT '',
	open_price     double precision NOT NULL DEFAULT 0,
	high_price     double precision NOT NULL DEFAULT 0,
	low_price      double precision NOT NULL DEFAULT 0,
	close_price    double precision NOT NULL DEFAULT 0,
	change_pct     double precision NOT NULL DEFAULT 0,
	volume         bigint NOT NULL DEFAULT 0,
	turnover_pct   double precision NOT NULL DEFAULT 0,
	amplitude_pct  double precision NOT NULL DEFAULT 0,
	pe             double precision NOT NULL DEFAULT 0,
	pe_ttm         double precision NOT NULL DEFAULT 0,
	pb             double precision NOT NULL DEFAULT 0,
	ps             double precision NOT NULL DEFAULT 0,
	market_cap     double precision NOT NULL DEFAULT 0,
	change_3d      double precision NOT NULL DEFAULT 0,
	change_5d      double precision NOT NULL DEFAULT 0,
	change_10d     double precision NOT NULL DEFAULT 0,
	change_20d     double precision NOT NULL DEFAULT 0,
	change_60d     double precision NOT NULL DEFAULT 0,
	change_year    double precision NOT NULL DEFAULT 0,
	signals        text[] NOT NULL DEFAULT '{}',
	gross_margin   double precision NOT NULL DEFAULT 0,
	net_margin     double precision NOT NULL DEFAULT 0,
	debt_ratio     double precision NOT NULL DEFAULT 0,
	revenue_yoy    double precision NOT NULL DEFAULT 0,
	profit_yoy     double precision NOT NULL DEFAULT 0,
	dividend_yield double precision NOT NULL DEFAULT 0,
	formulas       text[] NOT NULL DEFAULT '{}',
	created_at     timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (code, trade_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_records_date ON pool.daily_records (trade_date);

CREATE TABLE IF NOT EXISTS pool.date_meta (
	trade_date    date PRIMARY KEY,
	stock_count   int NOT NULL DEFAULT 0,
	formula_count int NOT NULL DEFAULT 0,
	formulas      text[] NOT NULL DEFAULT '{}',
	index_code    text,
	index_name    text,
	index_price   double precision,
	index_change  double precision,
	imported_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool.ai_analysis (
	trade_date date NOT NULL,
	kind       text NOT NULL,
	code       text NOT NULL DEFAULT '',
	content    text NOT NULL DEFAULT '',
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (trade_date, kind, code)
);
`

// EnsureSchema creates tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
