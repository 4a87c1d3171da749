// Package schema defines the recording enumerations (factories, machine types,
// status types, ownership kinds) and the fixed grid layout derived from them.
//
// A Schema is built once at startup and never mutated. Enumeration order is
// significant: it decides where every factory column and status row lands on
// a sheet, so two processes with the same Schema always agree on coordinates.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ownership is the ownership kind of a group of machines.
type Ownership string

const (
	Owned Ownership = "Owned"
	Rent  Ownership = "Rent"
)

// Ownerships returns the ownership kinds in column order.
func Ownerships() []Ownership {
	return []Ownership{Owned, Rent}
}

// ParseOwnership converts a raw value to an Ownership.
// Matching is exact, as operators submit the labels shown on the form.
func ParseOwnership(v string) (Ownership, bool) {
	switch Ownership(v) {
	case Owned:
		return Owned, true
	case Rent:
		return Rent, true
	}
	return "", false
}

// DefaultFactories are the factory codes used in production.
var DefaultFactories = []string{"THHM", "THAM", "THGI", "THMM", "THKN"}

// DefaultMachineTypes are the machine types used in production.
var DefaultMachineTypes = []string{
	"Over Lock",
	"Right Cutter",
	"Left Cutter",
	"Bar Tack",
	"Flat Seam",
	"Ringer",
	"Single Needle",
	"Head Seal",
	"Flat Bed",
}

// DefaultStatusTypes are the status types used in production.
var DefaultStatusTypes = []string{
	"Absent",
	"No Allocation/Idle",
	"Feeding",
	"Line Balancing",
	"Replace",
	"Additional",
	"Breakdown",
}

// Schema holds the ordered enumerations. The zero value is not usable; build
// one with New, Default or Load.
type Schema struct {
	factories    []string
	machineTypes []string
	statusTypes  []string

	factoryIdx map[string]int
	machineIdx map[string]int
	statusIdx  map[string]int
}

// File is the YAML shape accepted by Load.
type File struct {
	Factories    []string `yaml:"factories"`
	MachineTypes []string `yaml:"machine_types"`
	StatusTypes  []string `yaml:"status_types"`
}

// New validates the enumerations and returns an immutable Schema.
// Every list must be non-empty and free of duplicates and blank entries.
func New(factories, machineTypes, statusTypes []string) (*Schema, error) {
	var errs []error

	factoryIdx, err := indexOf("factories", factories)
	errs = append(errs, err)
	machineIdx, err := indexOf("machine types", machineTypes)
	errs = append(errs, err)
	statusIdx, err := indexOf("status types", statusTypes)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	return &Schema{
		factories:    clone(factories),
		machineTypes: clone(machineTypes),
		statusTypes:  clone(statusTypes),
		factoryIdx:   factoryIdx,
		machineIdx:   machineIdx,
		statusIdx:    statusIdx,
	}, nil
}

// Default returns the production schema.
func Default() *Schema {
	s, err := New(DefaultFactories, DefaultMachineTypes, DefaultStatusTypes)
	if err != nil {
		panic(err)
	}
	return s
}

// Load reads a schema from a YAML file. Lists missing from the file fall back
// to the production defaults.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}

	return New(
		orDefault(f.Factories, DefaultFactories),
		orDefault(f.MachineTypes, DefaultMachineTypes),
		orDefault(f.StatusTypes, DefaultStatusTypes),
	)
}

// FromLists builds a schema where any empty list falls back to the defaults.
func FromLists(factories, machineTypes, statusTypes []string) (*Schema, error) {
	return New(
		orDefault(factories, DefaultFactories),
		orDefault(machineTypes, DefaultMachineTypes),
		orDefault(statusTypes, DefaultStatusTypes),
	)
}

// Factories returns a copy of the factory codes in column order.
func (s *Schema) Factories() []string { return clone(s.factories) }

// MachineTypes returns a copy of the machine types in row order.
func (s *Schema) MachineTypes() []string { return clone(s.machineTypes) }

// StatusTypes returns a copy of the status types in row order.
func (s *Schema) StatusTypes() []string { return clone(s.statusTypes) }

// IsFactory reports whether v is a configured factory code.
func (s *Schema) IsFactory(v string) bool {
	_, ok := s.factoryIdx[v]
	return ok
}

// IsOwnership reports whether v is "Owned" or "Rent".
func (s *Schema) IsOwnership(v string) bool {
	_, ok := ParseOwnership(v)
	return ok
}

// IsMachineType reports whether v is a configured machine type.
func (s *Schema) IsMachineType(v string) bool {
	_, ok := s.machineIdx[v]
	return ok
}

// IsStatusType reports whether v is a configured status type.
func (s *Schema) IsStatusType(v string) bool {
	_, ok := s.statusIdx[v]
	return ok
}

func indexOf(label string, values []string) (map[string]int, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s must not be empty", label)
	}
	idx := make(map[string]int, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%s: entry %d is blank", label, i)
		}
		if _, dup := idx[v]; dup {
			return nil, fmt.Errorf("%s: duplicate entry %q", label, v)
		}
		idx[v] = i
	}
	return idx, nil
}

func orDefault(values, def []string) []string {
	if len(values) == 0 {
		return def
	}
	return values
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
