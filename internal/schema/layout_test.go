package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestColumnFor_Injective(t *testing.T) {
	s := Default()
	seen := make(map[int]string)

	for _, f := range s.Factories() {
		for _, o := range Ownerships() {
			col, err := s.ColumnFor(f, o)
			if err != nil {
				t.Fatalf("ColumnFor(%q, %q) error = %v", f, o, err)
			}
			key := f + "/" + string(o)
			if prev, dup := seen[col]; dup {
				t.Errorf("column %d assigned to both %s and %s", col, prev, key)
			}
			seen[col] = key
		}
	}

	want := 2 * len(s.Factories())
	if len(seen) != want {
		t.Fatalf("distinct columns = %d, want %d", len(seen), want)
	}
	for col := FirstDataColumn; col < FirstDataColumn+want; col++ {
		if _, ok := seen[col]; !ok {
			t.Errorf("column %d not covered", col)
		}
	}
}

func TestColumnFor_Positions(t *testing.T) {
	s := Default()
	tests := []struct {
		factory   string
		ownership Ownership
		want      int
	}{
		{"THHM", Owned, 3},
		{"THHM", Rent, 4},
		{"THAM", Owned, 5},
		{"THKN", Rent, 12},
	}

	for _, tt := range tests {
		got, err := s.ColumnFor(tt.factory, tt.ownership)
		if err != nil {
			t.Fatalf("ColumnFor(%q, %q) error = %v", tt.factory, tt.ownership, err)
		}
		if got != tt.want {
			t.Errorf("ColumnFor(%q, %q) = %d, want %d", tt.factory, tt.ownership, got, tt.want)
		}
	}
}

func TestColumnFor_Invalid(t *testing.T) {
	s := Default()

	if _, err := s.ColumnFor("XYZZ", Owned); !errors.Is(err, ErrInvalidFactory) {
		t.Errorf("ColumnFor(XYZZ) error = %v, want ErrInvalidFactory", err)
	}
	if _, err := s.ColumnFor("THHM", Ownership("Leased")); !errors.Is(err, ErrInvalidOwnership) {
		t.Errorf("ColumnFor(Leased) error = %v, want ErrInvalidOwnership", err)
	}
}

func TestRowFor_ContiguousBlocks(t *testing.T) {
	s := Default()
	statuses := s.StatusTypes()
	seen := make(map[int]bool)

	for _, m := range s.MachineTypes() {
		header, err := s.HeaderRowFor(m)
		if err != nil {
			t.Fatalf("HeaderRowFor(%q) error = %v", m, err)
		}
		for j, st := range statuses {
			row, err := s.RowFor(m, st)
			if err != nil {
				t.Fatalf("RowFor(%q, %q) error = %v", m, st, err)
			}
			if row != header+1+j {
				t.Errorf("RowFor(%q, %q) = %d, want %d", m, st, row, header+1+j)
			}
			if seen[row] {
				t.Errorf("row %d assigned twice", row)
			}
			seen[row] = true
		}
		if seen[header] {
			t.Errorf("header row %d of %q collides with a status row", header, m)
		}
	}

	if got, want := len(seen), len(s.MachineTypes())*len(statuses); got != want {
		t.Errorf("distinct status rows = %d, want %d", got, want)
	}
}

func TestRowFor_Positions(t *testing.T) {
	s := Default()
	tests := []struct {
		machineType string
		status      string
		want        int
	}{
		{"Over Lock", "Absent", 10},
		{"Over Lock", "Breakdown", 16},
		{"Right Cutter", "Absent", 18},
		{"Flat Bed", "Breakdown", 9 + 9*8 - 1},
	}

	for _, tt := range tests {
		got, err := s.RowFor(tt.machineType, tt.status)
		if err != nil {
			t.Fatalf("RowFor(%q, %q) error = %v", tt.machineType, tt.status, err)
		}
		if got != tt.want {
			t.Errorf("RowFor(%q, %q) = %d, want %d", tt.machineType, tt.status, got, tt.want)
		}
	}

	if got := s.LastRow(); got != 80 {
		t.Errorf("LastRow() = %d, want 80", got)
	}
	if got := s.Width(); got != 12 {
		t.Errorf("Width() = %d, want 12", got)
	}
}

func TestRowFor_Invalid(t *testing.T) {
	s := Default()

	if _, err := s.RowFor("Laser", "Absent"); !errors.Is(err, ErrInvalidMachineType) {
		t.Errorf("RowFor(Laser) error = %v, want ErrInvalidMachineType", err)
	}
	if _, err := s.RowFor("Over Lock", "Sleeping"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("RowFor(Sleeping) error = %v, want ErrInvalidStatus", err)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		factories []string
		machines  []string
		statuses  []string
		wantErr   bool
	}{
		{"valid", []string{"A"}, []string{"M"}, []string{"S"}, false},
		{"empty factories", nil, []string{"M"}, []string{"S"}, true},
		{"duplicate machine", []string{"A"}, []string{"M", "M"}, []string{"S"}, true},
		{"blank status", []string{"A"}, []string{"M"}, []string{" "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.factories, tt.machines, tt.statuses)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_AccessorsReturnCopies(t *testing.T) {
	s := Default()
	f := s.Factories()
	f[0] = "MUTATED"

	if s.Factories()[0] != "THHM" {
		t.Error("Factories() exposed internal slice")
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := "factories: [F1, F2]\nstatus_types:\n  - Running\n  - Down\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := s.Factories(); len(got) != 2 || got[1] != "F2" {
		t.Errorf("Factories() = %v, want [F1 F2]", got)
	}
	if got := len(s.MachineTypes()); got != len(DefaultMachineTypes) {
		t.Errorf("MachineTypes() length = %d, want default %d", got, len(DefaultMachineTypes))
	}
	if !s.IsStatusType("Down") || s.IsStatusType("Absent") {
		t.Error("status types not taken from file")
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		date    string
		want    string
		wantErr bool
	}{
		{"2026-02-11", "11/02", false},
		{"2026-12-01", "01/12", false},
		{"2026-2-11", "", true},
		{"2026-02-30", "", true},
		{"11/02/2026", "", true},
	}

	for _, tt := range tests {
		got, err := SheetName(tt.date)
		if (err != nil) != tt.wantErr {
			t.Errorf("SheetName(%q) error = %v, wantErr %v", tt.date, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SheetName(%q) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestIsDateSheetName(t *testing.T) {
	tests := map[string]bool{
		"11/02":          true,
		"1/02":           false,
		"Summary":        false,
		"Submission Log": false,
		"11/02 (old)":    false,
	}
	for name, want := range tests {
		if got := IsDateSheetName(name); got != want {
			t.Errorf("IsDateSheetName(%q) = %v, want %v", name, got, want)
		}
	}
}
