package contracts

import "time"

// DateFormat is the canonical date layout used across the store and API.
// Dates are fixed-width, so lexicographic order equals chronological order.
const DateFormat = "2006-01-02"

// StockInfo is the latest known identity of a ticker, keyed by code.
// Upserted on every import, cleared only by a full reset.
type StockInfo struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry"`
	Region    string    `json:"region"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DailyRecord is one stock's full metric snapshot for one calendar date,
// keyed by (code, date). Re-import overwrites every field except CreatedAt.
type DailyRecord struct {
	Code string `json:"code"`
	Date string `json:"date"`
	Name string `json:"name"`

	Industry string `json:"industry,omitempty"`
	Region   string `json:"region,omitempty"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	Change    float64 `json:"change"`    // percent
	Volume    int64   `json:"volume"`
	Turnover  float64 `json:"turnover"`  // percent
	Amplitude float64 `json:"amplitude"` // percent

	PE        float64 `json:"pe"`
	PETTM     float64 `json:"peTTM"`
	PB        float64 `json:"pb"`
	PS        float64 `json:"ps"`
	MarketCap float64 `json:"marketCap"`

	Change3d   float64 `json:"change3d"`
	Change5d   float64 `json:"change5d"`
	Change10d  float64 `json:"change10d"`
	Change20d  float64 `json:"change20d"`
	Change60d  float64 `json:"change60d"`
	ChangeYear float64 `json:"changeYear"`

	Signals []string `json:"signals,omitempty"` // technical-signal tags

	GrossMargin   float64 `json:"grossMargin"`
	NetMargin     float64 `json:"netMargin"`
	DebtRatio     float64 `json:"debtRatio"`
	RevenueYoY    float64 `json:"revenueYoY"`
	ProfitYoY     float64 `json:"profitYoY"`
	DividendYield float64 `json:"dividendYield"`

	// Formulas are the screening-formula names that selected this stock
	// on this date. The formula logic itself lives outside the system.
	Formulas []string `json:"formulas"`

	CreatedAt time.Time `json:"createdAt"`
}

// IndexSnapshot is an optional market-index benchmark captured per date.
type IndexSnapshot struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// DateMeta is the denormalized per-date summary, recomputed wholesale on
// every import or deletion touching the date.
type DateMeta struct {
	Date         string         `json:"date"`
	StockCount   int            `json:"stockCount"`
	FormulaCount int            `json:"formulaCount"`
	Formulas     []string       `json:"formulas"`
	Index        *IndexSnapshot `json:"index,omitempty"`
	ImportedAt   time.Time      `json:"importedAt"`
}

// AnalysisSummary is an opaque cached narrative, keyed by (date, kind[, code]).
type AnalysisSummary struct {
	Date      string    `json:"date"`
	Kind      string    `json:"kind"`
	Code      string    `json:"code,omitempty"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}
