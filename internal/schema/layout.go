package schema

// layout.go maps recording tuples onto grid coordinates.
//
// Every date sheet and the summary body share one layout:
//
//	row 7:  [ ] [ ] THHM  .     THAM  .     ...
//	row 8:  [ ] [ ] Owned Rent  Owned Rent  ...
//	row 9:  Over Lock                          <- machine-type header row
//	row 10: [ ] Absent  n     n     ...        <- status rows
//	...
//
// The mapping is write-only: nothing ever needs to turn a coordinate back into
// a tuple, because readers re-derive coordinates from the same Schema.

import (
	"errors"
	"fmt"
)

// Fixed positions (1-based, spreadsheet convention).
const (
	TitleRow           = 1
	GeneratedRow       = 2
	FactoryHeaderRow   = 7
	OwnershipHeaderRow = 8
	FirstDataRow       = 9

	LabelColumn     = 1
	StatusColumn    = 2
	FirstDataColumn = 3
)

var (
	ErrInvalidFactory     = errors.New("invalid factory")
	ErrInvalidOwnership   = errors.New("invalid ownership")
	ErrInvalidMachineType = errors.New("invalid machine type")
	ErrInvalidStatus      = errors.New("invalid status")
)

// ColumnFor returns the column holding counts for factory and ownership.
// Factories occupy contiguous two-column blocks in enumeration order, Owned
// before Rent.
func (s *Schema) ColumnFor(factory string, ownership Ownership) (int, error) {
	i, ok := s.factoryIdx[factory]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFactory, factory)
	}
	base := FirstDataColumn + 2*i
	switch ownership {
	case Owned:
		return base, nil
	case Rent:
		return base + 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOwnership, ownership)
}

// RowFor returns the row holding counts for machineType and status.
func (s *Schema) RowFor(machineType, status string) (int, error) {
	header, err := s.HeaderRowFor(machineType)
	if err != nil {
		return 0, err
	}
	j, ok := s.statusIdx[status]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return header + 1 + j, nil
}

// HeaderRowFor returns the label row that opens machineType's block.
func (s *Schema) HeaderRowFor(machineType string) (int, error) {
	i, ok := s.machineIdx[machineType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMachineType, machineType)
	}
	return FirstDataRow + i*s.BlockSize(), nil
}

// BlockSize is the number of rows one machine type consumes: its header row
// plus one row per status.
func (s *Schema) BlockSize() int {
	return 1 + len(s.statusTypes)
}

// BodyRows is the number of rows in the body region.
func (s *Schema) BodyRows() int {
	return len(s.machineTypes) * s.BlockSize()
}

// LastRow is the last row of the body region.
func (s *Schema) LastRow() int {
	return FirstDataRow + s.BodyRows() - 1
}

// Width is the number of columns in a date sheet: two label columns plus two
// per factory.
func (s *Schema) Width() int {
	return 2 + 2*len(s.factories)
}
