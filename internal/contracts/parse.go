package contracts

// StockGroup is one named formula group from an export file.
type StockGroup struct {
	Name   string         `json:"name"`
	Stocks []*DailyRecord `json:"stocks"`
}

// ParsedFile is the result of parsing one export file: a trade date, the
// named formula groups, an optional index benchmark, and a flat
// deduplicated stock list whose Formulas carry the union of group names.
type ParsedFile struct {
	Date   string         `json:"date"`
	Groups []StockGroup   `json:"groups"`
	Index  *IndexSnapshot `json:"index,omitempty"`
	Stocks []*DailyRecord `json:"stocks"`
}

// ImportResult reports insert-vs-update counts for one import call.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// FileResult is the per-file outcome within a batch import.
type FileResult struct {
	File     string `json:"file"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Date     string `json:"date,omitempty"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
}

// BatchResult aggregates a multi-file import. One file failing to parse
// does not abort the remaining files.
type BatchResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
}
