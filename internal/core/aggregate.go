package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/logging"
	"github.com/JonMunkholm/machinelog/internal/schema"
	"golang.org/x/sync/errgroup"
)

// sheetTotals holds one date sheet's values, indexed [pair][column] where
// pair enumerates (machine type, status) and column enumerates
// (factory, ownership) in schema order.
type sheetTotals [][]float64

// ComputeSummary sums every body cell across all date sheets. It does not
// write anything.
func (s *Service) ComputeSummary(ctx context.Context) (*Summary, error) {
	sheets, err := s.store.List(ctx, schema.IsDateSheetName)
	if err != nil {
		return nil, fmt.Errorf("list date sheets: %w", err)
	}

	rows, cols, err := s.coordinates()
	if err != nil {
		return nil, err
	}

	results := make([]sheetTotals, len(sheets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, sheet := range sheets {
		g.Go(func() error {
			totals, err := readSheet(gctx, sheet, rows, cols)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.FromContext(ctx).Warn("date sheet unreadable, counting as zero",
					"sheet", sheet.Name(), "error", err)
				return nil
			}
			results[i] = totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read date sheets: %w", err)
	}

	sum := &Summary{
		GeneratedAt: s.now(),
		Factories:   s.schema.Factories(),
	}
	combined := newTotals(len(rows), len(cols))
	for i, sheet := range sheets {
		if results[i] == nil {
			sum.SkippedSheets = append(sum.SkippedSheets, sheet.Name())
			continue
		}
		sum.Sheets = append(sum.Sheets, sheet.Name())
		for p := range combined {
			for c := range combined[p] {
				combined[p][c] += results[i][p][c]
			}
		}
	}

	s.project(sum, combined)
	return sum, nil
}

// RebuildSummary computes the summary and rewrites the summary sheet.
func (s *Service) RebuildSummary(ctx context.Context) (*Summary, error) {
	sum, err := s.ComputeSummary(ctx)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, schema.SummarySheetName)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := s.store.GetOrCreate(ctx, schema.SummarySheetName, nil)
	if err != nil {
		return nil, err
	}
	if err := g.Clear(ctx); err != nil {
		return nil, err
	}
	if err := renderSummary(ctx, g, sum); err != nil {
		return nil, err
	}
	if err := grid.Flush(ctx, s.store); err != nil {
		return nil, err
	}

	s.stats.summaryRebuilds.Add(1)
	s.stats.lastRebuild.Store(stamp(sum.GeneratedAt))

	logging.FromContext(ctx).Info("summary rebuilt",
		"sheets", len(sum.Sheets),
		"skipped_sheets", len(sum.SkippedSheets),
		"grand_total", sum.GrandTotal,
	)
	return sum, nil
}

// coordinates lists body rows in (machine type, status) order and data
// columns in (factory, ownership) order.
func (s *Service) coordinates() (rows, cols []int, err error) {
	for _, mt := range s.schema.MachineTypes() {
		for _, st := range s.schema.StatusTypes() {
			r, err := s.schema.RowFor(mt, st)
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, r)
		}
	}
	for _, f := range s.schema.Factories() {
		for _, o := range schema.Ownerships() {
			c, err := s.schema.ColumnFor(f, o)
			if err != nil {
				return nil, nil, err
			}
			cols = append(cols, c)
		}
	}
	return rows, cols, nil
}

// readSheet reads every body cell. Any failure discards the whole sheet so a
// half-read sheet never contributes.
func readSheet(ctx context.Context, g grid.Grid, rows, cols []int) (sheetTotals, error) {
	totals := newTotals(len(rows), len(cols))
	for p, r := range rows {
		for c, col := range cols {
			v, err := g.Get(ctx, grid.At(r, col))
			if err != nil {
				return nil, err
			}
			totals[p][c] = countValue(v)
		}
	}
	return totals, nil
}

func newTotals(pairs, cols int) sheetTotals {
	t := make(sheetTotals, pairs)
	for i := range t {
		t[i] = make([]float64, cols)
	}
	return t
}

// project lays the combined totals out in schema order.
func (s *Service) project(sum *Summary, combined sheetTotals) {
	factories := s.schema.Factories()
	statuses := s.schema.StatusTypes()

	perFactory := make([]FactoryTotal, len(factories))
	for i, f := range factories {
		perFactory[i].Factory = f
	}

	p := 0
	for _, mt := range s.schema.MachineTypes() {
		block := SummaryBlock{MachineType: mt}
		for _, st := range statuses {
			row := SummaryRow{Status: st, Factories: make([]FactoryTotal, len(factories))}
			for i, f := range factories {
				owned := combined[p][2*i]
				rent := combined[p][2*i+1]
				row.Factories[i] = FactoryTotal{Factory: f, Owned: owned, Rent: rent}
				row.Total += owned + rent
				perFactory[i].Owned += owned
				perFactory[i].Rent += rent
			}
			sum.GrandTotal += row.Total
			block.Rows = append(block.Rows, row)
			p++
		}
		sum.Blocks = append(sum.Blocks, block)
	}
	sum.FactoryTotals = perFactory
}
