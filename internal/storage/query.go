package storage

import (
	"strings"

	"expenses/internal/core"
)

// Dialect adapts the shared SQL to a driver's parameter syntax and date type.
type Dialect struct {
	// Placeholder returns the marker for the n-th argument, starting at 1.
	Placeholder func(n int) string
	DateValue   func(d core.Date) any
}

// ExpenseColumns is the column list every SELECT and RETURNING clause uses.
const ExpenseColumns = "id, title, amount_cents, category, date, description"

// ListQuery builds the filtered, ordered SELECT for the expenses table.
func ListQuery(f core.ListFilter, d Dialect) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if c := f.CategoryFilter(); c != "" {
		where = append(where, "category = "+bind(c))
	}
	if f.StartDate != nil {
		where = append(where, "date >= "+bind(d.DateValue(*f.StartDate)))
	}
	if f.EndDate != nil {
		where = append(where, "date <= "+bind(d.DateValue(*f.EndDate)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + ExpenseColumns + " FROM expenses")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY date DESC, id ASC")
	return b.String(), args
}
