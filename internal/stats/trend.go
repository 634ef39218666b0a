package stats

import (
	"sort"

	"khoroch/internal/core"
)

// DefaultTrendWindow is the number of days shown on the dashboard chart.
const DefaultTrendWindow = 7

// MaxTrendWindow bounds the number of buckets DailyTrend allocates.
const MaxTrendWindow = 366

// DailyTrend buckets amounts per day over the window ending at ref
// (inclusive), oldest first. A non-positive window falls back to
// DefaultTrendWindow and a longer one is cut to MaxTrendWindow. Heights are
// relative to the largest bucket.
func DailyTrend(es []core.Expense, ref core.Date, windowDays int) core.Trend {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindow
	}
	if windowDays > MaxTrendWindow {
		windowDays = MaxTrendWindow
	}
	ref = core.NewDate(ref.Year(), int(ref.Month()), ref.Day())
	start := ref.AddDays(-(windowDays - 1))

	buckets := make([]core.TrendBucket, windowDays)
	index := make(map[string]int, windowDays)
	for i := range buckets {
		day := start.AddDays(i)
		buckets[i].Day = day
		index[day.String()] = i
	}

	for _, e := range es {
		d, ok := e.Day()
		if !ok || !countable(e) {
			continue
		}
		if i, hit := index[d.String()]; hit {
			buckets[i].Amount = buckets[i].Amount.Add(e.Amount)
		}
	}

	var maxAmount core.Money
	for _, b := range buckets {
		if b.Amount.Cents > maxAmount.Cents {
			maxAmount = b.Amount
		}
	}
	for i := range buckets {
		buckets[i].Height = Percent(buckets[i].Amount, maxAmount)
	}
	return core.Trend{Buckets: buckets, Max: maxAmount}
}

// DistinctMonths lists every YYYY-MM present, most recent first.
func DistinctMonths(es []core.Expense) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range es {
		d, ok := e.Day()
		if !ok {
			continue
		}
		key := d.MonthKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
