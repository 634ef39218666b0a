package stats

import (
	"sort"

	"khoroch/internal/core"
)

// Total sums every countable amount.
func Total(es []core.Expense) core.Money {
	var sum core.Money
	for _, e := range es {
		if countable(e) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// Percent returns part/whole scaled to 0-100, or 0 when whole is not positive.
func Percent(part, whole core.Money) float64 {
	if whole.Cents <= 0 {
		return 0
	}
	return float64(part.Cents) / float64(whole.Cents) * 100
}

// CategoryTotals sums amounts per category, largest first. Equal totals keep
// the order in which their categories were first seen. Dates are ignored.
func CategoryTotals(es []core.Expense) []core.CategoryAmount {
	index := make(map[string]int)
	out := make([]core.CategoryAmount, 0)
	for _, e := range es {
		if !countable(e) {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, core.CategoryAmount{Name: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Cents > out[j].Amount.Cents
	})
	return out
}

// Top returns at most n leading entries of totals.
func Top(totals []core.CategoryAmount, n int) []core.CategoryAmount {
	if n <= 0 {
		return []core.CategoryAmount{}
	}
	if len(totals) <= n {
		return totals
	}
	return totals[:n]
}

// MonthlyTotal sums the expenses dated within the calendar month.
func MonthlyTotal(es []core.Expense, year, month int) core.Money {
	var sum core.Money
	if month < 1 || month > 12 {
		return sum
	}
	for _, e := range es {
		d, ok := e.Day()
		if !ok || !countable(e) {
			continue
		}
		if d.Year() == year && int(d.Month()) == month {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// ContributionBreakdown reports each name's share of the subset total, in the
// order of names. Percentages are all 0 when the total is 0.
func ContributionBreakdown(es []core.Expense, names []string) []core.Contribution {
	byName := make(map[string]core.Money, len(names))
	for _, e := range es {
		if countable(e) {
			byName[e.Name] = byName[e.Name].Add(e.Amount)
		}
	}
	total := Total(es)
	out := make([]core.Contribution, 0, len(names))
	for _, n := range names {
		amount := byName[n]
		out = append(out, core.Contribution{
			Name:    n,
			Amount:  amount,
			Percent: Percent(amount, total),
		})
	}
	return out
}

// MonthOverview bundles the month view: total, category ranking and the
// per-name breakdown.
func MonthOverview(es []core.Expense, year, month int, names []string) core.MonthOverview {
	subset := InMonth(es, year, month)
	return core.MonthOverview{
		Year:          year,
		Month:         month,
		Total:         Total(subset),
		ByCategory:    CategoryTotals(subset),
		Contributions: ContributionBreakdown(subset, names),
	}
}
