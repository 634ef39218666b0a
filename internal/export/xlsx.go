// Package export renders a month of expenses as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"khoroch/internal/core"
	"khoroch/internal/stats"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	expensesSheet = "Expenses"
	summarySheet  = "Summary"
)

// Filename returns the download name for a month, e.g. khoroch-2024-05.xlsx.
func Filename(year, month int) string {
	return fmt.Sprintf("khoroch-%04d-%02d.xlsx", year, month)
}

// MonthWorkbook builds a workbook with one row per expense of the month and
// a summary sheet holding category totals and the per-person breakdown.
// Rows keep the order of es.
func MonthWorkbook(es []core.Expense, year, month int, names []string) (*excelize.File, error) {
	key := fmt.Sprintf("%04d-%02d", year, month)
	rows := stats.FilterByMonth(es, key)
	overview := stats.MonthOverview(es, year, month, names)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		f.Close()
		return nil, err
	}

	sheet := sheetWriter{f: f, name: expensesSheet}
	sheet.row(1, "Date", "Name", "Category", "Scope", "Amount")
	sheet.style(1, 1, 5, headerStyle)
	for i, e := range rows {
		r := i + 2
		sheet.row(r, e.Date, e.Name, e.Category, string(e.Scope.Normalize()), e.Amount.Float())
		sheet.style(r, 5, 5, amountStyle)
	}

	sum := sheetWriter{f: f, name: summarySheet}
	sum.row(1, "Month", key)
	sum.row(2, "Total", overview.Total.Float())
	sum.row(4, "Category", "Amount")
	sum.style(4, 1, 2, headerStyle)
	r := 5
	for _, c := range overview.ByCategory {
		sum.row(r, c.Name, c.Amount.Float())
		r++
	}
	r++
	sum.row(r, "Person", "Amount", "Share %")
	sum.style(r, 1, 3, headerStyle)
	r++
	for _, c := range overview.Contributions {
		sum.row(r, c.Name, c.Amount.Float(), c.Percent)
		r++
	}

	if sheet.err != nil {
		f.Close()
		return nil, sheet.err
	}
	if sum.err != nil {
		f.Close()
		return nil, sum.err
	}
	_ = f.SetColWidth(expensesSheet, "A", "E", 16)
	_ = f.SetColWidth(summarySheet, "A", "C", 16)
	return f, nil
}

// WriteMonth streams the workbook for a month to w.
func WriteMonth(w io.Writer, es []core.Expense, year, month int, names []string) error {
	f, err := MonthWorkbook(es, year, month, names)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so callers can check once.
type sheetWriter struct {
	f    *excelize.File
	name string
	err  error
}

func (s *sheetWriter) row(r int, values ...any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(s.name, cell, &values)
}

// style applies styleID to columns from..to of row r.
func (s *sheetWriter) style(r, from, to, styleID int) {
	if s.err != nil {
		return
	}
	first, err := excelize.CoordinatesToCellName(from, r)
	if err != nil {
		s.err = err
		return
	}
	last, err := excelize.CoordinatesToCellName(to, r)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellStyle(s.name, first, last, styleID)
}
