package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// Summary is the aggregate view over a set of expenses. It is never stored.
type Summary struct {
	Total           Money              `json:"total"`
	Count           int                `json:"count"`
	AverageExpense  float64            `json:"averageExpense"`
	CategoryTotals  map[string]Money   `json:"categoryTotals"`
	MonthlyTotals   map[string]Money   `json:"monthlyTotals"`
	MonthlyAverages map[string]float64 `json:"monthlyAverages"`
}

// MonthStat is one entry of a monthly trend series.
type MonthStat struct {
	Month   string  `json:"month"` // YYYY-MM
	Total   Money   `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Growth compares the two most recent months of a trend.
type Growth struct {
	PreviousMonth string  `json:"previousMonth"`
	CurrentMonth  string  `json:"currentMonth"`
	Change        Money   `json:"change"`
	PercentChange float64 `json:"percentChange"`
	IsIncrease    bool    `json:"isIncrease"`
}

// CategoryStat is one row of a category breakdown.
type CategoryStat struct {
	Category   string  `json:"category"`
	Total      Money   `json:"total"`
	Count      int     `json:"count"`
	Average    float64 `json:"average"`
	Percentage float64 `json:"percentage"`
}

// Summarize computes totals, counts and averages in a single pass.
func Summarize(records []Expense) Summary {
	s := Summary{
		CategoryTotals:  make(map[string]Money),
		MonthlyTotals:   make(map[string]Money),
		MonthlyAverages: make(map[string]float64),
	}
	monthCounts := make(map[string]int)
	for _, e := range records {
		s.Total = s.Total.Add(e.Amount)
		s.Count++
		s.CategoryTotals[e.Category] = s.CategoryTotals[e.Category].Add(e.Amount)
		key := e.Date.MonthKey()
		s.MonthlyTotals[key] = s.MonthlyTotals[key].Add(e.Amount)
		monthCounts[key]++
	}
	s.AverageExpense = average(s.Total, s.Count)
	for month, total := range s.MonthlyTotals {
		s.MonthlyAverages[month] = average(total, monthCounts[month])
	}
	return s
}

// MonthlyTrend groups records by month, orders months ascending and keeps the
// last `months` entries. A non-positive window keeps every month.
func MonthlyTrend(records []Expense, months int) []MonthStat {
	index := make(map[string]int)
	var stats []MonthStat
	for _, e := range records {
		key := e.Date.MonthKey()
		i, ok := index[key]
		if !ok {
			i = len(stats)
			index[key] = i
			stats = append(stats, MonthStat{Month: key})
		}
		stats[i].Total = stats[i].Total.Add(e.Amount)
		stats[i].Count++
	}
	// YYYY-MM keys are zero padded, so lexical order is chronological.
	slices.SortFunc(stats, func(a, b MonthStat) int { return cmp.Compare(a.Month, b.Month) })
	if months > 0 && len(stats) > months {
		stats = stats[len(stats)-months:]
	}
	for i := range stats {
		stats[i].Average = average(stats[i].Total, stats[i].Count)
	}
	if stats == nil {
		stats = []MonthStat{}
	}
	return stats
}

// GrowthTrend compares the last two entries of trend. It reports false when
// fewer than two months are present or the previous month total is zero.
func GrowthTrend(trend []MonthStat) (Growth, bool) {
	if len(trend) < 2 {
		return Growth{}, false
	}
	current := trend[len(trend)-1]
	previous := trend[len(trend)-2]
	if previous.Total.Cents == 0 {
		return Growth{}, false
	}
	change := current.Total.Sub(previous.Total)
	return Growth{
		PreviousMonth: previous.Month,
		CurrentMonth:  current.Month,
		Change:        change,
		PercentChange: percent(change.Decimal(), previous.Total.Decimal()),
		IsIncrease:    change.Cents > 0,
	}, true
}

// CategoryBreakdown groups the subset selected by category ("All" or "" for
// every record) and orders rows by total descending, ties by first occurrence.
func CategoryBreakdown(records []Expense, category string) []CategoryStat {
	subset := FilterExpenses(records, ListFilter{Category: category})
	index := make(map[string]int)
	stats := make([]CategoryStat, 0)
	var subsetTotal Money
	for _, e := range subset {
		subsetTotal = subsetTotal.Add(e.Amount)
		i, ok := index[e.Category]
		if !ok {
			i = len(stats)
			index[e.Category] = i
			stats = append(stats, CategoryStat{Category: e.Category})
		}
		stats[i].Total = stats[i].Total.Add(e.Amount)
		stats[i].Count++
	}
	for i := range stats {
		stats[i].Average = average(stats[i].Total, stats[i].Count)
		stats[i].Percentage = percent(stats[i].Total.Decimal(), subsetTotal.Decimal())
	}
	slices.SortStableFunc(stats, func(a, b CategoryStat) int {
		return cmp.Compare(b.Total.Cents, a.Total.Cents)
	})
	return stats
}

// TopExpenses returns the n largest expenses. Equal amounts keep their input order.
func TopExpenses(records []Expense, n int) []Expense {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Expense) int {
		return cmp.Compare(b.Amount.Cents, a.Amount.Cents)
	})
	return head(sorted, n)
}

// RecentExpenses returns the n most recent expenses by date. Equal dates keep
// their input order.
func RecentExpenses(records []Expense, n int) []Expense {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Expense) int {
		return b.Date.Compare(a.Date.Time)
	})
	return head(sorted, n)
}

func head(records []Expense, n int) []Expense {
	if n >= 0 && len(records) > n {
		records = records[:n]
	}
	if records == nil {
		records = []Expense{}
	}
	return records
}

func average(total Money, count int) float64 {
	if count == 0 {
		return 0
	}
	return ratio(total.Decimal(), decimal.NewFromInt(int64(count)))
}
