package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Contribution is one person's share of a set of expenses.
type Contribution struct {
	Name    string
	Amount  Money
	Percent float64 // 0-100
}

// TrendBucket is a single day of a daily trend.
type TrendBucket struct {
	Day    Date
	Amount Money
	Height float64 // 0-100, relative to the largest bucket
}

// Trend is a fixed window of consecutive days, oldest first.
type Trend struct {
	Buckets []TrendBucket
	Max     Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year          int
	Month         int // 1-12
	Total         Money
	ByCategory    []CategoryAmount
	Contributions []Contribution
}

// Diagnostics counts records the aggregation functions had to skip.
type Diagnostics struct {
	Total         int
	InvalidDate   int
	InvalidAmount int
}

// Skipped reports whether any record was ignored.
func (d Diagnostics) Skipped() bool {
	return d.InvalidDate > 0 || d.InvalidAmount > 0
}
