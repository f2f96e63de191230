package core

import (
	"cmp"
	"slices"
	"strings"
)

// ListFilter narrows the expense list. Zero value matches everything.
type ListFilter struct {
	Category  string
	StartDate *Date
	EndDate   *Date
}

// CategoryFilter returns the category to match, or "" when every category
// should be returned ("All" in any letter case counts as no filter).
func (f ListFilter) CategoryFilter() string {
	c := strings.TrimSpace(f.Category)
	if strings.EqualFold(c, "all") {
		return ""
	}
	return c
}

// Matches reports whether e passes the filter. Date bounds are inclusive.
func (f ListFilter) Matches(e Expense) bool {
	if c := f.CategoryFilter(); c != "" && e.Category != c {
		return false
	}
	if f.StartDate != nil && e.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && e.Date.After(f.EndDate.Time) {
		return false
	}
	return true
}

// FilterExpenses returns the matching records in a new slice.
func FilterExpenses(records []Expense, f ListFilter) []Expense {
	out := make([]Expense, 0, len(records))
	for _, e := range records {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortForList orders records in place by date descending, ties by id ascending.
func SortForList(records []Expense) {
	slices.SortFunc(records, func(a, b Expense) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
