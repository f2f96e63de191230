package core

import (
	"testing"
	"time"
)

func TestBuildStatisticsDefaults(t *testing.T) {
	st := BuildStatistics(sampleExpenses(), StatisticsOptions{})
	if st.Months != DefaultTrendMonths || st.Category != "All" {
		t.Fatalf("defaults not applied: months=%d category=%q", st.Months, st.Category)
	}
	if len(st.Trend) != 4 {
		t.Fatalf("trend length = %d, want 4", len(st.Trend))
	}
	if st.Growth == nil || st.Growth.CurrentMonth != "2024-03" || st.Growth.PreviousMonth != "2024-02" {
		t.Fatalf("unexpected growth: %+v", st.Growth)
	}
	if st.CategoriesUsed != 5 || len(st.TopExpenses) != 6 {
		t.Fatalf("unexpected categories=%d top=%d", st.CategoriesUsed, len(st.TopExpenses))
	}
	if st.Total.Cents != 594550 {
		t.Fatalf("total = %d", st.Total.Cents)
	}
	// (0.01 + 3700 + 1045.49 + 1200) / 4
	if want := 1486.375; st.MonthlyAverage != want {
		t.Fatalf("monthly average = %v, want %v", st.MonthlyAverage, want)
	}
}

func TestBuildStatisticsEmpty(t *testing.T) {
	st := BuildStatistics(nil, StatisticsOptions{Months: 3, TopLimit: 10})
	if st.Growth != nil || st.MonthlyAverage != 0 || len(st.Trend) != 0 || len(st.TopExpenses) != 0 {
		t.Fatalf("unexpected statistics for empty input: %+v", st)
	}
}

func TestCompareMonths(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []Expense{
		exp(1, 1000, "Food", NewDate(2024, 3, 1)),
		exp(2, 500, "Food", NewDate(2024, 3, 2)),
		exp(3, 1000, "Food", NewDate(2024, 2, 20)),
		exp(4, 9999, "Food", NewDate(2023, 3, 2)),
	}
	cur, prev, growth := CompareMonths(records, now)
	if cur.Month != "2024-03" || cur.Total.Cents != 1500 || cur.Count != 2 {
		t.Fatalf("unexpected current month: %+v", cur)
	}
	if prev.Month != "2024-02" || prev.Total.Cents != 1000 {
		t.Fatalf("unexpected previous month: %+v", prev)
	}
	if growth == nil || growth.PercentChange != 50 || !growth.IsIncrease {
		t.Fatalf("unexpected growth: %+v", growth)
	}

	_, _, none := CompareMonths(records[:2], now)
	if none != nil {
		t.Fatalf("growth must be nil without previous month spend")
	}
}

func TestCompareMonthsAcrossYearBoundary(t *testing.T) {
	now := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	_, prev, _ := CompareMonths(nil, now)
	if prev.Month != "2023-12" {
		t.Fatalf("previous month = %q, want 2023-12", prev.Month)
	}
}

func TestBuildDashboard(t *testing.T) {
	d := BuildDashboard(sampleExpenses(), time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	if d.Summary.Count != 6 || len(d.Recent) != DefaultRecentLimit {
		t.Fatalf("unexpected dashboard: count=%d recent=%d", d.Summary.Count, len(d.Recent))
	}
	if d.Recent[0].ID != 5 {
		t.Fatalf("most recent expense should come first, got %d", d.Recent[0].ID)
	}
}
