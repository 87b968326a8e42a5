package contracts

// Recommendation tiers derived from total score plus corroboration signals.
const (
	RecommendationStrong = "strong"
	RecommendationMedium = "medium"
	RecommendationWeak   = "weak"
)

// ScoreBreakdown holds the decomposed sub-scores after rescaling, so the
// values sum (before rounding) to the total.
type ScoreBreakdown struct {
	Change    float64 `json:"change"`
	Formula   float64 `json:"formula"`
	Turnover  float64 `json:"turnover"`
	Amplitude float64 `json:"amplitude"`
	Trend     float64 `json:"trend"`
}

// RankedStock is one row of the scoring output.
type RankedStock struct {
	Rank           int            `json:"rank"`
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Change         float64        `json:"change"`
	FormulaCount   int            `json:"formulaCount"`
	Formulas       []string       `json:"formulas"`
	Total          float64        `json:"total"`
	Scores         ScoreBreakdown `json:"scores"`
	Recommendation string         `json:"recommendation"`
}

// DaySummary carries per-date aggregate statistics for the dashboard.
type DaySummary struct {
	Date       string  `json:"date"`
	StockCount int     `json:"stockCount"`
	UpCount    int     `json:"upCount"`
	DownCount  int     `json:"downCount"`
	FlatCount  int     `json:"flatCount"`
	MaxChange  float64 `json:"maxChange"`
	MinChange  float64 `json:"minChange"`
	AvgChange  float64 `json:"avgChange"`
}
