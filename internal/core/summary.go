package core

import (
	"sort"
	"strings"
)

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// ParseGranularity defaults to monthly buckets.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GranularityMonth, nil
	case GranularityDay, GranularityMonth:
		return g, nil
	default:
		return "", newError(ErrValidation, "invalid period: must be day or month")
	}
}

type SummaryOptions struct {
	Granularity Granularity
	// Top limits ByCategory to the largest N entries per direction. Zero keeps all.
	Top int
}

type CategoryTotal struct {
	Category string `json:"category"`
	Icon     string `json:"icon,omitempty"`
	Type     TxType `json:"type"`
	Total    Money  `json:"total"`
	Count    int    `json:"count"`
}

// PeriodTotal is one bucket of the period breakdown. Balance is filled in by
// NewSummary.
type PeriodTotal struct {
	Period  string `json:"period"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Balance Money  `json:"balance"`
}

type Summary struct {
	TotalIncome  Money           `json:"total_income"`
	TotalExpense Money           `json:"total_expenses"`
	Balance      Money           `json:"balance"`
	ByCategory   []CategoryTotal `json:"by_category"`
	ByPeriod     []PeriodTotal   `json:"by_period"`
	Granularity  Granularity     `json:"granularity"`
}

// NewSummary assembles the aggregates of one filter. Balance is always derived
// from the totals.
func NewSummary(income, expense Money, categories []CategoryTotal, periods []PeriodTotal, opts SummaryOptions) Summary {
	SortCategoryTotals(categories)
	if opts.Top > 0 {
		categories = TopPerType(categories, opts.Top)
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	for i := range periods {
		periods[i].Balance = periods[i].Income.Sub(periods[i].Expense)
	}
	if categories == nil {
		categories = []CategoryTotal{}
	}
	if periods == nil {
		periods = []PeriodTotal{}
	}
	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
		ByCategory:   categories,
		ByPeriod:     periods,
		Granularity:  opts.Granularity,
	}
}

// SortCategoryTotals orders by total descending, then by name.
func SortCategoryTotals(ts []CategoryTotal) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Total.Cents != ts[j].Total.Cents {
			return ts[i].Total.Cents > ts[j].Total.Cents
		}
		if ts[i].Category != ts[j].Category {
			return ts[i].Category < ts[j].Category
		}
		return ts[i].Type < ts[j].Type
	})
}

// TopPerType keeps the first n entries of each type of an already sorted slice.
func TopPerType(ts []CategoryTotal, n int) []CategoryTotal {
	seen := make(map[TxType]int, 2)
	out := make([]CategoryTotal, 0, len(ts))
	for _, t := range ts {
		if seen[t.Type] >= n {
			continue
		}
		seen[t.Type]++
		out = append(out, t)
	}
	return out
}

// ByType returns the category totals of one direction, preserving order.
func (s Summary) ByType(t TxType) []CategoryTotal {
	out := []CategoryTotal{}
	for _, c := range s.ByCategory {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
