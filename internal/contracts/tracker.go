package contracts

// DayPool is one imported day as consumed by the cross-day tracker:
// the date plus its formula groups.
type DayPool struct {
	Date   string       `json:"date"`
	Groups []StockGroup `json:"groups"`
}

// RecurringStock is a stock appearing across at least a threshold number
// of distinct dates, with its aggregated memberships and change history.
type RecurringStock struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Dates        []string  `json:"dates"`
	DateCount    int       `json:"dateCount"`
	Formulas     []string  `json:"formulas"`
	FormulaCount int       `json:"formulaCount"`
	Changes      []float64 `json:"changes"` // one per distinct date, in date order
}
