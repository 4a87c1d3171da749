package core

import (
	"context"
	"strconv"
	"time"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/schema"
)

const generatedLayout = "2006-01-02 15:04:05"

var logHeader = []string{
	"Timestamp",
	"Date",
	"Factory",
	"Ownership",
	"Operator Name",
	"Total Machines",
	"Raw Data",
}

const (
	summaryTitle        = "Summary Report"
	summaryEmptyMarker  = "No daily sheets found. Data will appear after first operator submission."
	summarySectionTitle = "Factory Totals (All Days Combined)"

	summaryCountRow   = 4
	summarySectionRow = 6
	summaryHeaderRow  = 7
)

// dailyLayout writes the fixed header and label regions of a new date sheet.
func (s *Service) dailyLayout(name string) grid.Layout {
	return func(ctx context.Context, g grid.Grid) error {
		w := cellWriter{ctx: ctx, g: g}
		w.text(schema.TitleRow, 1, "Daily Machine Recording - "+name)
		w.text(schema.GeneratedRow, 1, "Generated: "+s.now().Format(generatedLayout))

		for _, factory := range s.schema.Factories() {
			owned, err := s.schema.ColumnFor(factory, schema.Owned)
			if err != nil {
				return err
			}
			w.text(schema.FactoryHeaderRow, owned, factory)
			for _, o := range schema.Ownerships() {
				col, _ := s.schema.ColumnFor(factory, o)
				w.text(schema.OwnershipHeaderRow, col, string(o))
			}
		}

		for _, mt := range s.schema.MachineTypes() {
			header, err := s.schema.HeaderRowFor(mt)
			if err != nil {
				return err
			}
			w.text(header, schema.LabelColumn, mt)
			for _, st := range s.schema.StatusTypes() {
				row, _ := s.schema.RowFor(mt, st)
				w.text(row, schema.StatusColumn, st)
			}
		}
		return w.err
	}
}

func logLayout(ctx context.Context, g grid.Grid) error {
	cells := make([]grid.Cell, len(logHeader))
	for i, h := range logHeader {
		cells[i] = grid.Text(h)
	}
	return g.AppendRow(ctx, cells)
}

// SummaryRole tells renderers how a summary cell is used.
type SummaryRole uint8

const (
	SummaryText SummaryRole = iota
	SummaryHeader
	SummaryMachineType
	SummaryCount
)

// SummaryCell is one positioned cell of a rendered summary.
type SummaryCell struct {
	At    grid.Coord
	Value grid.Cell
	Role  SummaryRole
}

// SummaryLayout lays sum out as cells in row order. Zero totals are left
// out. next is the first row below the content. The store's summary sheet
// and exported workbooks are both drawn from it.
func SummaryLayout(sum *Summary) (cells []SummaryCell, next int) {
	put := func(row, col int, v grid.Cell, role SummaryRole) {
		cells = append(cells, SummaryCell{At: grid.At(row, col), Value: v, Role: role})
	}
	count := func(row, col int, v float64) {
		if v != 0 {
			put(row, col, grid.Number(v), SummaryCount)
		}
	}

	put(1, 1, grid.Text(summaryTitle), SummaryText)
	put(2, 1, grid.Text("Generated: "+sum.GeneratedAt.Format(generatedLayout)), SummaryText)

	if sum.Empty() {
		put(summaryCountRow, 1, grid.Text(summaryEmptyMarker), SummaryText)
		return cells, summaryCountRow + 1
	}

	put(summaryCountRow, 1, grid.Text("Total Daily Sheets: "+strconv.Itoa(len(sum.Sheets)+len(sum.SkippedSheets))), SummaryText)
	put(summarySectionRow, 1, grid.Text(summarySectionTitle), SummaryText)

	header := []string{"Machine Type", "Status"}
	for _, f := range sum.Factories {
		header = append(header, f+" Owned", f+" Rent")
	}
	header = append(header, "TOTAL")
	for i, h := range header {
		put(summaryHeaderRow, i+1, grid.Text(h), SummaryHeader)
	}

	row := summaryHeaderRow + 1
	for _, block := range sum.Blocks {
		put(row, 1, grid.Text(block.MachineType), SummaryMachineType)
		row++
		for _, r := range block.Rows {
			put(row, 2, grid.Text(r.Status), SummaryText)
			col := 3
			for _, ft := range r.Factories {
				count(row, col, ft.Owned)
				count(row, col+1, ft.Rent)
				col += 2
			}
			count(row, col, r.Total)
			row++
		}
	}
	return cells, row
}

// renderSummary writes sum onto g, which is expected to be empty.
func renderSummary(ctx context.Context, g grid.Grid, sum *Summary) error {
	cells, _ := SummaryLayout(sum)
	w := cellWriter{ctx: ctx, g: g}
	for _, c := range cells {
		w.set(c.At.Row, c.At.Col, c.Value)
	}
	return w.err
}

// cellWriter stops at the first failed write and remembers the error.
type cellWriter struct {
	ctx context.Context
	g   grid.Grid
	err error
}

func (w *cellWriter) set(row, col int, v grid.Cell) {
	if w.err != nil {
		return
	}
	w.err = w.g.Set(w.ctx, grid.At(row, col), v)
}

func (w *cellWriter) text(row, col int, s string) { w.set(row, col, grid.Text(s)) }

// countValue is the one coercion rule for stored counts: numbers count,
// anything else (empty, text, numeric-looking text) is zero.
func countValue(c grid.Cell) float64 {
	if v, ok := c.Float(); ok {
		return v
	}
	return 0
}

func stamp(t time.Time) *time.Time { return &t }
