// Package grid defines the Sheet Store contract: named two-dimensional grids
// of cells with point reads, point writes and row appends.
//
// The recording core depends only on these interfaces. Implementations live
// in this package (MemoryStore) and in the xlsxstore and sqlstore packages.
package grid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Coord addresses a cell. Rows and columns are 1-based.
type Coord struct {
	Row int
	Col int
}

// At is shorthand for Coord{Row: row, Col: col}.
func At(row, col int) Coord {
	return Coord{Row: row, Col: col}
}

// Valid reports whether the coordinate lies inside the addressable area.
func (c Coord) Valid() bool {
	return c.Row >= 1 && c.Col >= 1
}

func (c Coord) String() string {
	return fmt.Sprintf("R%dC%d", c.Row, c.Col)
}

type cellKind uint8

const (
	kindEmpty cellKind = iota
	kindNumber
	kindText
)

// Cell is a single grid value: empty, a number, or text.
// The zero value is an empty cell.
type Cell struct {
	kind cellKind
	num  float64
	text string
}

// Empty is the empty cell.
var Empty = Cell{}

// Number returns a numeric cell.
func Number(v float64) Cell {
	return Cell{kind: kindNumber, num: v}
}

// Text returns a text cell. An empty string yields an empty cell.
func Text(s string) Cell {
	if s == "" {
		return Empty
	}
	return Cell{kind: kindText, text: s}
}

// IsEmpty reports whether the cell holds nothing.
func (c Cell) IsEmpty() bool { return c.kind == kindEmpty }

// IsNumber reports whether the cell holds a number.
func (c Cell) IsNumber() bool { return c.kind == kindNumber }

// Float returns the numeric value and whether the cell holds a number.
func (c Cell) Float() (float64, bool) {
	if c.kind != kindNumber {
		return 0, false
	}
	return c.num, true
}

// Value returns nil, a float64 or a string, matching the cell kind.
func (c Cell) Value() any {
	switch c.kind {
	case kindNumber:
		return c.num
	case kindText:
		return c.text
	}
	return nil
}

func (c Cell) String() string {
	switch c.kind {
	case kindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case kindText:
		return c.text
	}
	return ""
}

// Grid is one named sheet.
type Grid interface {
	Name() string

	// Get returns the cell at c; unwritten cells are Empty.
	Get(ctx context.Context, c Coord) (Cell, error)

	// Set overwrites the cell at c. Writing Empty clears it.
	Set(ctx context.Context, c Coord, v Cell) error

	// AppendRow writes values starting at column 1 of the row after the last
	// non-empty row.
	AppendRow(ctx context.Context, values []Cell) error

	// Clear removes every cell.
	Clear(ctx context.Context) error
}

// Layout initialises a freshly created grid. It may be nil.
type Layout func(ctx context.Context, g Grid) error

// Store is a keyed collection of grids.
type Store interface {
	// GetOrCreate returns the grid called name, creating it and running
	// layout exactly once if it does not exist yet. Repeated calls return the
	// same logical grid and never re-run layout.
	GetOrCreate(ctx context.Context, name string, layout Layout) (Grid, error)

	// List returns the grids whose names satisfy match, in creation order.
	List(ctx context.Context, match func(name string) bool) ([]Grid, error)
}

// Flusher is implemented by stores that buffer writes and must persist them
// explicitly.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Flush persists buffered writes when s supports it.
func Flush(ctx context.Context, s Store) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// ErrOutOfRange is returned for coordinates outside the addressable area.
var ErrOutOfRange = errors.New("coordinate out of range")

// StoreError wraps a failure of the underlying store.
type StoreError struct {
	Op    string
	Sheet string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("sheet store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sheet store: %s %q: %v", e.Op, e.Sheet, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns err as a *StoreError unless it is nil or already one.
func Wrap(op, sheet string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Sheet: sheet, Err: err}
}

// IsStoreError reports whether err came from a store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
