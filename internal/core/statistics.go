package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTrendMonths = 6
	DefaultTopLimit    = 10
	DefaultRecentLimit = 5
)

// StatisticsOptions selects the trend window, the category subset for the
// breakdown and the length of the top expenses list.
type StatisticsOptions struct {
	Months   int
	Category string
	TopLimit int
}

// Statistics bundles every derived figure the statistics view needs.
type Statistics struct {
	Months         int            `json:"months"`
	Category       string         `json:"category"`
	Total          Money          `json:"total"`
	MonthlyAverage float64        `json:"monthlyAverage"`
	Trend          []MonthStat    `json:"trend"`
	Growth         *Growth        `json:"growth"`
	Categories     []CategoryStat `json:"categories"`
	CategoriesUsed int            `json:"categoriesUsed"`
	TopExpenses    []Expense      `json:"topExpenses"`
}

// MonthTotal is the spend of one calendar month.
type MonthTotal struct {
	Month string `json:"month"`
	Total Money  `json:"total"`
	Count int    `json:"count"`
}

// Dashboard is the landing page view: latest records and month over month change.
type Dashboard struct {
	Summary       Summary    `json:"summary"`
	Recent        []Expense  `json:"recent"`
	CurrentMonth  MonthTotal `json:"currentMonth"`
	PreviousMonth MonthTotal `json:"previousMonth"`
	Growth        *Growth    `json:"growth"`
}

func (o StatisticsOptions) withDefaults() StatisticsOptions {
	if o.Months <= 0 {
		o.Months = DefaultTrendMonths
	}
	if o.TopLimit <= 0 {
		o.TopLimit = DefaultTopLimit
	}
	if o.Category == "" {
		o.Category = "All"
	}
	return o
}

// BuildStatistics computes trend, growth, category breakdown and top expenses
// from one record set.
func BuildStatistics(records []Expense, opts StatisticsOptions) Statistics {
	opts = opts.withDefaults()
	trend := MonthlyTrend(records, opts.Months)
	breakdown := CategoryBreakdown(records, opts.Category)

	var windowTotal Money
	for _, m := range trend {
		windowTotal = windowTotal.Add(m.Total)
	}
	var total Money
	for _, e := range records {
		total = total.Add(e.Amount)
	}

	st := Statistics{
		Months:         opts.Months,
		Category:       opts.Category,
		Total:          total,
		MonthlyAverage: ratio(windowTotal.Decimal(), decimal.NewFromInt(int64(len(trend)))),
		Trend:          trend,
		Categories:     breakdown,
		CategoriesUsed: len(breakdown),
		TopExpenses:    TopExpenses(records, opts.TopLimit),
	}
	if g, ok := GrowthTrend(trend); ok {
		st.Growth = &g
	}
	return st
}

// CompareMonths totals the calendar month containing now and the one before it.
func CompareMonths(records []Expense, now time.Time) (current, previous MonthTotal, growth *Growth) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	current.Month = first.Format("2006-01")
	previous.Month = first.AddDate(0, -1, 0).Format("2006-01")
	for _, e := range records {
		switch e.Date.MonthKey() {
		case current.Month:
			current.Total = current.Total.Add(e.Amount)
			current.Count++
		case previous.Month:
			previous.Total = previous.Total.Add(e.Amount)
			previous.Count++
		}
	}
	trend := []MonthStat{
		{Month: previous.Month, Total: previous.Total, Count: previous.Count},
		{Month: current.Month, Total: current.Total, Count: current.Count},
	}
	if g, ok := GrowthTrend(trend); ok {
		growth = &g
	}
	return current, previous, growth
}

// BuildDashboard assembles the dashboard view as of now.
func BuildDashboard(records []Expense, now time.Time) Dashboard {
	current, previous, growth := CompareMonths(records, now)
	return Dashboard{
		Summary:       Summarize(records),
		Recent:        RecentExpenses(records, DefaultRecentLimit),
		CurrentMonth:  current,
		PreviousMonth: previous,
		Growth:        growth,
	}
}
