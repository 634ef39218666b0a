package google

import (
	"fmt"
	"strings"

	"khoroch/internal/core"
)

const lastColumn = "F"

var header = []string{"ID", "Date", "Name", "Category", "Amount", "Scope"}

func headerRow() []any {
	out := make([]any, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

// expenseRow renders e in column order A..F. Amounts are written as plain
// decimal strings so the sheet locale cannot reinterpret them.
func expenseRow(e core.Expense) []any {
	return []any{e.ID, e.Date, e.Name, e.Category, e.Amount.String(), string(e.Scope.Normalize())}
}

// parseExpenseRow reads a row written by expenseRow. ok is false for the
// header and for rows that do not hold a usable expense.
func parseExpenseRow(row []any) (core.Expense, bool) {
	cols := toStrings(row)
	if len(cols) < 5 || cols[0] == "" || strings.EqualFold(cols[0], header[0]) {
		return core.Expense{}, false
	}
	amount, err := core.ParseAmount(cols[4])
	if err != nil {
		return core.Expense{}, false
	}
	e := core.Expense{
		ID:       cols[0],
		Date:     cols[1],
		Name:     cols[2],
		Category: cols[3],
		Amount:   amount,
	}
	if len(cols) > 5 {
		e.Scope = core.Scope(cols[5])
	}
	e.Scope = e.Scope.Normalize()
	return e, true
}

// rowIndexByID returns the 1-based row whose first cell equals id, or 0.
func rowIndexByID(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0
	}
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
