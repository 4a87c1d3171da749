// Package report renders summaries as standalone workbooks for download.
package report

import (
	"fmt"
	"io"

	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet of an exported summary.
const SheetName = "Summary"

// ContentType is the MIME type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteSummaryXLSX writes sum as a one-sheet workbook with the cell layout of
// the Summary sheet kept in the record store, plus a grand total line.
func WriteSummaryXLSX(w io.Writer, sum *core.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	x := writer{f: f}
	cells, next := core.SummaryLayout(sum)
	for _, c := range cells {
		x.set(c.At.Row, c.At.Col, c.Value.Value())
		if c.Role == core.SummaryHeader || c.Role == core.SummaryMachineType {
			x.bold(c.At.Row, c.At.Col, c.At.Row, c.At.Col)
		}
	}
	if sum.Empty() {
		return x.finish(w)
	}

	// Grand total line under the blocks.
	row := next + 1
	x.set(row, 2, "TOTAL")
	col := 3
	for _, ft := range sum.FactoryTotals {
		x.count(row, col, ft.Owned)
		x.count(row, col+1, ft.Rent)
		col += 2
	}
	x.count(row, col, sum.GrandTotal)
	x.bold(row, 1, row, col)

	if x.err == nil {
		x.err = f.SetColWidth(SheetName, "A", "B", 22)
	}
	return x.finish(w)
}

// writer stops at the first failed call and keeps the error.
type writer struct {
	f    *excelize.File
	err  error
	bstl int
}

func (x *writer) set(row, col int, v any) {
	if x.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		x.err = err
		return
	}
	x.err = x.f.SetCellValue(SheetName, cell, v)
}

// count leaves zero totals blank, as on the stored sheet.
func (x *writer) count(row, col int, v float64) {
	if v == 0 {
		return
	}
	x.set(row, col, v)
}

func (x *writer) bold(r1, c1, r2, c2 int) {
	if x.err != nil {
		return
	}
	if x.bstl == 0 {
		id, err := x.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			x.err = err
			return
		}
		x.bstl = id
	}
	from, _ := excelize.CoordinatesToCellName(c1, r1)
	to, _ := excelize.CoordinatesToCellName(c2, r2)
	x.err = x.f.SetCellStyle(SheetName, from, to, x.bstl)
}

func (x *writer) finish(w io.Writer) error {
	if x.err != nil {
		return fmt.Errorf("render summary: %w", x.err)
	}
	if err := x.f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
