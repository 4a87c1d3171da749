package report

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSummary() *core.Summary {
	return &core.Summary{
		GeneratedAt: time.Date(2026, 2, 12, 7, 0, 0, 0, time.UTC),
		Sheets:      []string{"11/02", "12/02"},
		Factories:   []string{"THHM", "THAM"},
		Blocks: []core.SummaryBlock{{
			MachineType: "Over Lock",
			Rows: []core.SummaryRow{
				{Status: "Absent", Factories: []core.FactoryTotal{ft("THHM", 8, 1), ft("THAM", 0, 2)}, Total: 11},
				{Status: "Feeding", Factories: []core.FactoryTotal{ft("THHM", 0, 0), ft("THAM", 0, 0)}},
			},
		}},
		FactoryTotals: []core.FactoryTotal{ft("THHM", 8, 1), ft("THAM", 0, 2)},
		GrandTotal:    11,
	}
}

func ft(factory string, owned, rent float64) core.FactoryTotal {
	return core.FactoryTotal{Factory: factory, Owned: owned, Rent: rent}
}

func open(t *testing.T, sum *core.Summary) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryXLSX(&buf, sum))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteSummaryXLSX_Layout(t *testing.T) {
	f := open(t, sampleSummary())

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	cells := map[string]string{
		"A1":  "Summary Report",
		"A2":  "Generated: 2026-02-12 07:00:00",
		"A4":  "Total Daily Sheets: 2",
		"A6":  "Factory Totals (All Days Combined)",
		"C7":  "THHM Owned",
		"F7":  "THAM Rent",
		"G7":  "TOTAL",
		"A8":  "Over Lock",
		"B9":  "Absent",
		"C9":  "8",
		"D9":  "1",
		"E9":  "",
		"G9":  "11",
		"B10": "Feeding",
		"G10": "",
		"B12": "TOTAL",
		"G12": "11",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue(SheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, "cell %s", cell)
	}
}

func TestWriteSummaryXLSX_Empty(t *testing.T) {
	f := open(t, &core.Summary{GeneratedAt: time.Now()})

	got, err := f.GetCellValue(SheetName, "A4")
	require.NoError(t, err)
	assert.Contains(t, got, "No daily sheets found")

	header, err := f.GetCellValue(SheetName, "A7")
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestWriteSummaryXLSX_MatchesStoredSheet(t *testing.T) {
	sum := sampleSummary()
	f := open(t, sum)

	cells, next := core.SummaryLayout(sum)
	require.NotEmpty(t, cells)
	for _, c := range cells {
		axis, err := excelize.CoordinatesToCellName(c.At.Col, c.At.Row)
		require.NoError(t, err)
		got, err := f.GetCellValue(SheetName, axis)
		require.NoError(t, err)
		assert.Equal(t, c.Value.String(), got, "cell %s", axis)
	}

	total, err := f.GetCellValue(SheetName, "B"+strconv.Itoa(next+1))
	require.NoError(t, err)
	assert.Equal(t, "TOTAL", total)

	style, err := f.GetCellStyle(SheetName, "C7")
	require.NoError(t, err)
	assert.NotZero(t, style, "header cells are bold")
}
