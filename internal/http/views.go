package http

import (
	"khoroch/internal/core"
	"khoroch/internal/stats"
)

const (
	dashboardTop = 3
	historyTop   = 5
)

type row struct {
	ID       string
	Date     string
	Name     string
	Category string
	Amount   core.Money
	Scope    core.Scope
	Editable bool
}

// overviewView backs both the joint dashboard and the personal page.
type overviewView struct {
	page
	Heading       string
	Scope         core.Scope
	Today         string
	Month         string
	Total         core.Money
	Contributions []core.Contribution
	TopCategories []core.CategoryAmount
	Trend         core.Trend
	Rows          []row
	Skipped       int
}

type historyView struct {
	page
	Date          string
	Month         string
	Scope         string
	Months        []string
	Label         string
	Total         core.Money
	Contributions []core.Contribution
	TopCategories []core.CategoryAmount
	Rows          []row
}

type formView struct {
	page
	ID       string
	Return   string
	Form     expenseForm
	Problems []string
}

func rowsFor(es []core.Expense, user string) []row {
	out := make([]row, 0, len(es))
	for _, e := range es {
		out = append(out, row{
			ID:       e.ID,
			Date:     e.Date,
			Name:     e.Name,
			Category: e.Category,
			Amount:   e.Amount,
			Scope:    e.Scope.Normalize(),
			Editable: e.Name == user,
		})
	}
	return out
}

// buildOverview computes the widgets for one scope as of today. The table and
// totals cover the same current-month subset; the trend looks back over the last week
// regardless of month boundaries.
func buildOverview(all []core.Expense, scope core.Scope, user string, today core.Date, names []string) overviewView {
	scoped := stats.FilterByScope(all, scope, user)
	month := stats.InMonth(scoped, today.Year(), int(today.Month()))
	overview := stats.MonthOverview(scoped, today.Year(), int(today.Month()), names)
	diag := stats.Inspect(scoped)

	return overviewView{
		Scope:         scope,
		Today:         today.String(),
		Month:         today.MonthKey(),
		Total:         overview.Total,
		Contributions: overview.Contributions,
		TopCategories: stats.Top(overview.ByCategory, dashboardTop),
		Trend:         stats.DailyTrend(scoped, today, stats.DefaultTrendWindow),
		Rows:          rowsFor(month, user),
		Skipped:       diag.InvalidDate + diag.InvalidAmount,
	}
}

// historyFilter is the parsed query of /history. A day wins over a month;
// with neither, the most recent month with data is shown.
type historyFilter struct {
	Day   core.Date
	Month string
	Scope core.Scope
}

func buildHistory(all []core.Expense, f historyFilter, user string, names []string) historyView {
	subset := all
	if f.Scope.Valid() {
		subset = stats.FilterByScope(subset, f.Scope, user)
	}
	months := stats.DistinctMonths(all)

	view := historyView{Months: months, Scope: string(f.Scope)}
	switch {
	case !f.Day.IsZero():
		subset = stats.FilterByDay(subset, f.Day)
		view.Date = f.Day.String()
		view.Label = f.Day.Format("Monday, 2 January 2006")
	default:
		key := f.Month
		if key == "" && len(months) > 0 {
			key = months[0]
		}
		if year, month, err := core.ParseMonthKey(key); err == nil {
			subset = stats.InMonth(subset, year, month)
		} else {
			subset = nil
		}
		view.Month = key
		view.Label = monthLabel(key)
	}

	view.Total = stats.Total(subset)
	view.Contributions = stats.ContributionBreakdown(subset, names)
	view.TopCategories = stats.Top(stats.CategoryTotals(subset), historyTop)
	view.Rows = rowsFor(subset, user)
	return view
}
