// Package xlsxstore keeps grids as worksheets of a single .xlsx workbook.
//
// The workbook is loaded into memory on Open and written back on Flush and
// Close. A store holds an exclusive lock on <path>.lock from Open to Close,
// so a second process cannot load the same workbook and overwrite it.
package xlsxstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
)

var (
	_ grid.Store   = (*Store)(nil)
	_ grid.Flusher = (*Store)(nil)
)

// Excel rejects '/' in sheet titles, so logical names are stored with U+2215
// DIVISION SLASH, which renders the same.
const slashStandIn = "∕"

const defaultSheet = "Sheet1"

const lockFileSuffix = ".lock"

// ErrInUse is returned by Open when another store holds the workbook.
var ErrInUse = errors.New("workbook is in use by another process")

// Store is a workbook-backed grid store.
type Store struct {
	path string
	lock *flock.Flock

	createMu sync.Mutex

	mu    sync.Mutex // guards file and dirty
	file  *excelize.File
	dirty bool
	fresh bool // file was created by us and still holds excelize's placeholder sheet
}

// Open locks and loads the workbook at path, or starts a new one if it does
// not exist. It fails with ErrInUse instead of waiting when the lock is held.
func Open(path string) (*Store, error) {
	lock := flock.New(path + lockFileSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock workbook %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("open workbook %s: %w", path, ErrInUse)
	}

	s, err := load(path)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	s.lock = lock
	return s, nil
}

func load(path string) (*Store, error) {
	s := &Store{path: path}

	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		s.file = f
		return s, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat workbook %s: %w", path, err)
	}

	s.file = excelize.NewFile()
	s.fresh = true
	return s, nil
}

// Path returns the workbook location.
func (s *Store) Path() string { return s.path }

func (s *Store) GetOrCreate(ctx context.Context, name string, layout grid.Layout) (grid.Grid, error) {
	phys := physicalName(name)

	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.mu.Lock()
	idx, err := s.file.GetSheetIndex(phys)
	if err != nil {
		s.mu.Unlock()
		return nil, grid.Wrap("lookup", name, err)
	}
	if idx != -1 {
		s.mu.Unlock()
		return &sheet{store: s, name: name, phys: phys}, nil
	}

	if _, err := s.file.NewSheet(phys); err != nil {
		s.mu.Unlock()
		return nil, grid.Wrap("create", name, err)
	}
	if s.fresh {
		// Drop excelize's placeholder once a real sheet exists.
		if err := s.file.DeleteSheet(defaultSheet); err != nil {
			s.mu.Unlock()
			return nil, grid.Wrap("create", name, err)
		}
		s.fresh = false
	}
	s.dirty = true
	s.mu.Unlock()

	g := &sheet{store: s, name: name, phys: phys}
	if layout != nil {
		if err := layout(ctx, g); err != nil {
			return nil, grid.Wrap("layout", name, err)
		}
	}
	return g, nil
}

func (s *Store) List(ctx context.Context, match func(string) bool) ([]grid.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []grid.Grid
	for _, phys := range s.file.GetSheetList() {
		if s.fresh && phys == defaultSheet {
			continue
		}
		name := logicalName(phys)
		if match == nil || match(name) {
			out = append(out, &sheet{store: s, name: name, phys: phys})
		}
	}
	return out, nil
}

// Flush writes the workbook to disk if anything changed since the last flush.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return grid.Wrap("save", "", err)
	}
	s.dirty = false
	return nil
}

// Close flushes pending writes, releases the workbook and then its lock.
// The lock is kept if the flush fails, so no other process loads a workbook
// missing these writes.
func (s *Store) Close() error {
	if err := s.Flush(context.Background()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return err
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock workbook %s: %w", s.path, err)
	}
	return nil
}

type sheet struct {
	store *Store
	name  string
	phys  string
}

func (g *sheet) Name() string { return g.name }

func (g *sheet) Get(ctx context.Context, c grid.Coord) (grid.Cell, error) {
	axis, err := cellName(c)
	if err != nil {
		return grid.Empty, grid.Wrap("get", g.name, err)
	}

	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	raw, err := g.store.file.GetCellValue(g.phys, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return grid.Empty, grid.Wrap("get", g.name, err)
	}
	if raw == "" {
		return grid.Empty, nil
	}

	typ, err := g.store.file.GetCellType(g.phys, axis)
	if err != nil {
		return grid.Empty, grid.Wrap("get", g.name, err)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return grid.Text(raw), nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return grid.Number(n), nil
	}
	return grid.Text(raw), nil
}

func (g *sheet) Set(ctx context.Context, c grid.Coord, v grid.Cell) error {
	axis, err := cellName(c)
	if err != nil {
		return grid.Wrap("set", g.name, err)
	}

	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	if err := g.store.file.SetCellValue(g.phys, axis, v.Value()); err != nil {
		return grid.Wrap("set", g.name, err)
	}
	g.store.dirty = true
	return nil
}

func (g *sheet) AppendRow(ctx context.Context, values []grid.Cell) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	rows, err := g.store.file.GetRows(g.phys)
	if err != nil {
		return grid.Wrap("append", g.name, err)
	}

	start, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return grid.Wrap("append", g.name, err)
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v.Value()
	}
	if err := g.store.file.SetSheetRow(g.phys, start, &row); err != nil {
		return grid.Wrap("append", g.name, err)
	}
	g.store.dirty = true
	return nil
}

func (g *sheet) Clear(ctx context.Context) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	rows, err := g.store.file.GetRows(g.phys)
	if err != nil {
		return grid.Wrap("clear", g.name, err)
	}
	for r := len(rows); r >= 1; r-- {
		if err := g.store.file.RemoveRow(g.phys, r); err != nil {
			return grid.Wrap("clear", g.name, err)
		}
	}
	g.store.dirty = true
	return nil
}

func cellName(c grid.Coord) (string, error) {
	if !c.Valid() {
		return "", grid.ErrOutOfRange
	}
	name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
	if err != nil {
		return "", fmt.Errorf("%w: %v", grid.ErrOutOfRange, err)
	}
	return name, nil
}

func physicalName(name string) string {
	return strings.ReplaceAll(name, "/", slashStandIn)
}

func logicalName(phys string) string {
	return strings.ReplaceAll(phys, slashStandIn, "/")
}
