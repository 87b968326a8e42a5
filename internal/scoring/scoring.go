// Package scoring ranks one day's stock pool. Scoring is a pure function
// of the day's records: given the same input it always produces the same
// ranking, with no store access.
package scoring

import (
	"math"
	"sort"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// Sub-score rescaling multipliers. The literal values are part of the
// scoring contract: totals are only reproducible with exactly these
// constants, so they are never rounded to "nicer" weights.
const (
	changeRescale    = 0.83  // raw 0-30 -> ~0-25
	formulaRescale   = 0.875 // raw 0-40 -> ~0-35
	turnoverRescale  = 0.67  // raw 0-15 -> ~0-10
	amplitudeRescale = 0.67  // raw 0-15 -> ~0-10
)

// Recommendation thresholds.
const (
	strongTotalMin   = 70
	strongTrendMin   = 10
	mediumTotalMin   = 55
	mediumComboTotal = 45
)

// ChangeScore maps today's percent change to a raw 0-30 score. The curve
// is piecewise linear, continuous at every band boundary and monotone
// non-decreasing. The limit-up band (>=9.5) is flat at 28, below the true
// maximum of 30.
func ChangeScore(change float64) float64 {
	switch {
	case change >= 9.5:
		return 28
	case change >= 5:
		return 22 + (change-5)*(6.0/4.5)
	case change >= 3:
		return 18 + (change-3)*2
	case change >= 1:
		return 14 + (change-1)*2
	case change >= 0:
		return 10 + change*4
	case change >= -2:
		return 6 + (change+2)*2
	case change >= -5:
		return 3 + (change + 5)
	default:
		return math.Max(0, 3+(change+5)*0.6)
	}
}

// FormulaScore maps the distinct-formula-membership count to a raw 0-40
// score. The 1->2 jump is the single largest reward in the model:
// corroboration across independent formulas beats any one signal.
func FormulaScore(count int) float64 {
	switch {
	case count <= 0:
		return 0
	case count == 1:
		return 18
	case count == 2:
		return 32
	case count == 3:
		return 38
	default:
		return 40
	}
}

// tentScore is shared by turnover and amplitude: a peak of 15 at the
// optimum, a square-root falloff on both sides (penalty per unit shrinks
// with distance), floored at 2. Non-positive inputs score zero.
func tentScore(value, optimum float64) float64 {
	if value <= 0 {
		return 0
	}
	return math.Max(2, 15-4*math.Sqrt(math.Abs(value-optimum)))
}

// TurnoverScore maps turnover% to a raw 0-15 score with the optimum at 5%.
func TurnoverScore(turnover float64) float64 {
	return tentScore(turnover, 5)
}

// AmplitudeScore maps amplitude% to a raw 0-15 score with the optimum at 3.5%.
func AmplitudeScore(amplitude float64) float64 {
	return tentScore(amplitude, 3.5)
}

// TrendScore sums three independently-capped contributions from the 5, 10
// and 20-day trailing returns (caps 8/6/6, total 0-20, no rescale).
// Longer horizons need proportionally larger moves for the same score.
// Missing fields count as zero.
func TrendScore(change5d, change10d, change20d float64) float64 {
	return trend5(change5d) + trend10(change10d) + trend20(change20d)
}

func trend5(x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x < 5:
		return x * 1.2
	default:
		return math.Min(8, 6+(x-5)*0.4)
	}
}

func trend10(x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x < 8:
		return x * 0.6
	default:
		return math.Min(6, 4.8+(x-8)*0.2)
	}
}

func trend20(x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x < 12:
		return x * 0.4
	default:
		return math.Min(6, 4.8+(x-12)*0.15)
	}
}

// Score computes the rescaled sub-score breakdown and the rounded total
// for one record. Optional fields default to zero and never error.
func Score(rec *contracts.DailyRecord) (contracts.ScoreBreakdown, float64) {
	breakdown := contracts.ScoreBreakdown{
		Change:    ChangeScore(rec.Change) * changeRescale,
		Formula:   FormulaScore(distinctCount(rec.Formulas)) * formulaRescale,
		Turnover:  TurnoverScore(rec.Turnover) * turnoverRescale,
		Amplitude: AmplitudeScore(rec.Amplitude) * amplitudeRescale,
		Trend:     TrendScore(rec.Change5d, rec.Change10d, rec.Change20d),
	}

	total := round1(breakdown.Change + breakdown.Formula + breakdown.Turnover +
		breakdown.Amplitude + breakdown.Trend)
	return breakdown, total
}

// Recommend buckets a scored stock into strong/medium/weak.
// Strong needs total, corroboration and trend together; medium is either
// a high total alone or a decent total with corroboration.
func Recommend(total float64, formulaCount int, trendScore float64) string {
	if total >= strongTotalMin && formulaCount >= 2 && trendScore >= strongTrendMin {
		return contracts.RecommendationStrong
	}
	if total >= mediumTotalMin || (total >= mediumComboTotal && formulaCount >= 2) {
		return contracts.RecommendationMedium
	}
	return contracts.RecommendationWeak
}

// Rank scores a full day's pool and orders it descending by total score.
// The sort is stable: tied stocks keep their input order. Rows without a
// code are skipped rather than failing the whole ranking.
func Rank(records []*contracts.DailyRecord) []contracts.RankedStock {
	ranked := make([]contracts.RankedStock, 0, len(records))

	for _, rec := range records {
		if rec.Code == "" {
			continue
		}

		breakdown, total := Score(rec)
		formulaCount := distinctCount(rec.Formulas)

		ranked = append(ranked, contracts.RankedStock{
			Code:           rec.Code,
			Name:           rec.Name,
			Change:         rec.Change,
			FormulaCount:   formulaCount,
			Formulas:       rec.Formulas,
			Total:          total,
			Scores:         breakdown,
			Recommendation: Recommend(total, formulaCount, breakdown.Trend),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total > ranked[j].Total
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}

// Summarize computes the day's aggregate statistics.
func Summarize(date string, records []*contracts.DailyRecord) contracts.DaySummary {
	summary := contracts.DaySummary{
		Date:       date,
		StockCount: len(records),
	}
	if len(records) == 0 {
		return summary
	}

	summary.MaxChange = records[0].Change
	summary.MinChange = records[0].Change

	var sum float64
	for _, rec := range records {
		switch {
		case rec.Change > 0:
			summary.UpCount++
		case rec.Change < 0:
			summary.DownCount++
		default:
			summary.FlatCount++
		}

		if rec.Change > summary.MaxChange {
			summary.MaxChange = rec.Change
		}
		if rec.Change < summary.MinChange {
			summary.MinChange = rec.Change
		}
		sum += rec.Change
	}

	summary.AvgChange = round1(sum / float64(len(records)))
	return summary
}

func distinctCount(names []string) int {
	if len(names) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	return len(seen)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
