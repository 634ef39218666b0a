// Package stats derives the dashboard and history summaries from a flat list
// of expenses.
//
// Every function is pure: inputs are never mutated and empty input yields an
// empty or zero result. Records with an unparseable date are left out of
// date-dependent results; records with a negative amount are left out of
// every sum. Inspect reports how many records fell into either bucket.
package stats

import (
	"strings"

	"khoroch/internal/core"
)

// FilterByScope selects the expenses visible in a view.
//
// For core.ScopePersonal only the expenses of name are returned and an empty
// name selects nothing. For core.ScopeJoint name is ignored. Records without
// a scope count as joint. Relative order is preserved.
func FilterByScope(es []core.Expense, scope core.Scope, name string) []core.Expense {
	scope = scope.Normalize()
	out := make([]core.Expense, 0, len(es))
	switch scope {
	case core.ScopePersonal:
		if name == "" {
			return out
		}
		for _, e := range es {
			if e.Scope.Normalize() == core.ScopePersonal && e.Name == name {
				out = append(out, e)
			}
		}
	case core.ScopeJoint:
		for _, e := range es {
			if e.Scope.Normalize() == core.ScopeJoint {
				out = append(out, e)
			}
		}
	}
	return out
}

// FilterByMonth returns the expenses whose date starts with the YYYY-MM key.
// A malformed key matches nothing.
func FilterByMonth(es []core.Expense, key string) []core.Expense {
	out := make([]core.Expense, 0)
	key = strings.TrimSpace(key)
	if _, _, err := core.ParseMonthKey(key); err != nil {
		return out
	}
	prefix := key + "-"
	for _, e := range es {
		if strings.HasPrefix(strings.TrimSpace(e.Date), prefix) {
			out = append(out, e)
		}
	}
	return out
}

// InMonth returns the expenses whose parsed date falls in the calendar month.
// Unlike FilterByMonth, a malformed date such as 2024-05-99 never matches, so
// sums over the result agree with MonthlyTotal.
func InMonth(es []core.Expense, year, month int) []core.Expense {
	out := make([]core.Expense, 0)
	if month < 1 || month > 12 {
		return out
	}
	for _, e := range es {
		d, ok := e.Day()
		if ok && d.Year() == year && int(d.Month()) == month {
			out = append(out, e)
		}
	}
	return out
}

// FilterByDay returns the expenses dated on day.
func FilterByDay(es []core.Expense, day core.Date) []core.Expense {
	out := make([]core.Expense, 0)
	for _, e := range es {
		d, ok := e.Day()
		if ok && d.SameDay(day) {
			out = append(out, e)
		}
	}
	return out
}

// Inspect counts the records the aggregations skip.
func Inspect(es []core.Expense) core.Diagnostics {
	diag := core.Diagnostics{Total: len(es)}
	for _, e := range es {
		if _, ok := e.Day(); !ok {
			diag.InvalidDate++
		}
		if !countable(e) {
			diag.InvalidAmount++
		}
	}
	return diag
}

func countable(e core.Expense) bool {
	return e.Amount.Cents >= 0
}
