// Package tracker finds stocks recurring across imported days. Unlike
// history reconstruction it works over already-loaded day pools (the
// comparison view), not the raw record store.
package tracker

import (
	"sort"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// DefaultMinDays is the recurrence threshold when the caller passes 0.
const DefaultMinDays = 2

type accumulator struct {
	code     string
	name     string
	dates    []string
	dateSet  map[string]struct{}
	formulas []string
	fSet     map[string]struct{}
	changes  []float64
	order    int // first-seen position, for stable output
}

// FindRecurring scans every day's formula groups and accumulates per code
// the distinct dates, the distinct formula names across those dates, and
// one percent change per distinct date (duplicates of a code within one
// day are ignored after the first occurrence). Stocks seen on at least
// minDays distinct dates are returned sorted descending by date count,
// then formula count.
func FindRecurring(days []*contracts.DayPool, minDays int) []*contracts.RecurringStock {
	if minDays <= 0 {
		minDays = DefaultMinDays
	}

	sorted := make([]*contracts.DayPool, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	accs := make(map[string]*accumulator)
	var order []*accumulator

	for _, day := range sorted {
		for _, group := range day.Groups {
			for _, stock := range group.Stocks {
				if stock.Code == "" {
					continue
				}

				acc, ok := accs[stock.Code]
				if !ok {
					acc = &accumulator{
						code:    stock.Code,
						dateSet: make(map[string]struct{}),
						fSet:    make(map[string]struct{}),
						order:   len(order),
					}
					accs[stock.Code] = acc
					order = append(order, acc)
				}

				// Latest name wins across days.
				if stock.Name != "" {
					acc.name = stock.Name
				}

				if _, seen := acc.dateSet[day.Date]; !seen {
					acc.dateSet[day.Date] = struct{}{}
					acc.dates = append(acc.dates, day.Date)
					acc.changes = append(acc.changes, stock.Change)
				}

				if _, seen := acc.fSet[group.Name]; !seen && group.Name != "" {
					acc.fSet[group.Name] = struct{}{}
					acc.formulas = append(acc.formulas, group.Name)
				}
				for _, f := range stock.Formulas {
					if _, seen := acc.fSet[f]; !seen && f != "" {
						acc.fSet[f] = struct{}{}
						acc.formulas = append(acc.formulas, f)
					}
				}
			}
		}
	}

	var result []*contracts.RecurringStock
	for _, acc := range order {
		if len(acc.dates) < minDays {
			continue
		}
		result = append(result, &contracts.RecurringStock{
			Code:         acc.code,
			Name:         acc.name,
			Dates:        acc.dates,
			DateCount:    len(acc.dates),
			Formulas:     acc.formulas,
			FormulaCount: len(acc.formulas),
			Changes:      acc.changes,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].DateCount != result[j].DateCount {
			return result[i].DateCount > result[j].DateCount
		}
		return result[i].FormulaCount > result[j].FormulaCount
	})

	return result
}

// PoolsFromRecords regroups flat store records into per-day formula
// groups, the shape FindRecurring consumes. Records carry their formula
// memberships, so one record may appear in several groups of its day.
func PoolsFromRecords(records []*contracts.DailyRecord) []*contracts.DayPool {
	byDate := make(map[string]map[string][]*contracts.DailyRecord) // date -> formula -> stocks
	var dates []string

	for _, rec := range records {
		groups, ok := byDate[rec.Date]
		if !ok {
			groups = make(map[string][]*contracts.DailyRecord)
			byDate[rec.Date] = groups
			dates = append(dates, rec.Date)
		}

		if len(rec.Formulas) == 0 {
			groups[""] = append(groups[""], rec)
			continue
		}
		for _, f := range rec.Formulas {
			groups[f] = append(groups[f], rec)
		}
	}

	sort.Strings(dates)

	pools := make([]*contracts.DayPool, 0, len(dates))
	for _, date := range dates {
		groups := byDate[date]

		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)

		pool := &contracts.DayPool{Date: date}
		for _, name := range names {
			pool.Groups = append(pool.Groups, contracts.StockGroup{
				Name:   name,
				Stocks: groups[name],
			})
		}
		pools = append(pools, pool)
	}

	return pools
}
