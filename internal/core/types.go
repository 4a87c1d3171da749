package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// Submission is one operator report for a date, factory and ownership kind.
type Submission struct {
	Date         string         `json:"date" validate:"required"`
	Factory      string         `json:"factory" validate:"required"`
	Ownership    string         `json:"ownership" validate:"required"`
	OperatorName string         `json:"operatorName,omitempty"`
	Timestamp    string         `json:"timestamp,omitempty"`
	Machines     []MachineEntry `json:"machines"`

	// Raw is the payload as received. It is copied into the submission log
	// and used for the machine total. Apply fills it in when empty.
	Raw json.RawMessage `json:"-"`
}

// MachineEntry holds the status counts for one machine type.
type MachineEntry struct {
	Type     string           `json:"type"`
	Statuses map[string]Count `json:"statuses"`
}

// Count is one submitted status count. Any JSON value decodes; only numbers
// are valid, so a bad count under an unknown status cannot fail the payload.
type Count struct {
	Value float64
	Valid bool
}

// CountOf returns a valid count of n.
func CountOf(n float64) Count {
	return Count{Value: n, Valid: true}
}

func (c *Count) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err != nil || bytes.Equal(b, []byte("null")) {
		*c = Count{}
		return nil
	}
	*c = CountOf(n)
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// Acknowledgement describes an accepted submission.
type Acknowledgement struct {
	ID            string    `json:"id"`
	Sheet         string    `json:"sheet"`
	Date          string    `json:"date"`
	Factory       string    `json:"factory"`
	Ownership     string    `json:"ownership"`
	CellsUpdated  int       `json:"cellsUpdated"`
	TotalMachines float64   `json:"totalMachines"`
	Skipped       []string  `json:"skipped,omitempty"`
	ReceivedAt    time.Time `json:"receivedAt"`
	Message       string    `json:"message"`
}

// Summary is the cross-date projection of all date sheets.
type Summary struct {
	GeneratedAt time.Time `json:"generatedAt"`

	// Sheets lists the date sheets that contributed, in store order.
	Sheets []string `json:"sheets"`

	// SkippedSheets lists date sheets that could not be read. They count as zero.
	SkippedSheets []string `json:"skippedSheets,omitempty"`

	Factories     []string       `json:"factories"`
	Blocks        []SummaryBlock `json:"blocks"`
	FactoryTotals []FactoryTotal `json:"factoryTotals"`
	GrandTotal    float64        `json:"grandTotal"`
}

// Empty reports whether no date sheet exists yet.
func (s *Summary) Empty() bool {
	return len(s.Sheets) == 0 && len(s.SkippedSheets) == 0
}

// SummaryBlock groups the status rows of one machine type.
type SummaryBlock struct {
	MachineType string       `json:"machineType"`
	Rows        []SummaryRow `json:"rows"`
}

// SummaryRow holds the totals of one (machine type, status) pair.
type SummaryRow struct {
	Status    string         `json:"status"`
	Factories []FactoryTotal `json:"factories"`
	Total     float64        `json:"total"`
}

// FactoryTotal is an Owned/Rent pair for one factory.
type FactoryTotal struct {
	Factory string  `json:"factory"`
	Owned   float64 `json:"owned"`
	Rent    float64 `json:"rent"`
}

// StatusReport is the read-only health and schema probe.
type StatusReport struct {
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Factories    []string  `json:"factories"`
	MachineTypes []string  `json:"machineTypes"`
	StatusTypes  []string  `json:"statusTypes"`
	Stats        Stats     `json:"stats"`
}

// Stats are process-lifetime counters.
type Stats struct {
	Accepted            int64         `json:"accepted"`
	Rejected            int64         `json:"rejected"`
	Failed              int64         `json:"failed"`
	CellsUpdated        int64         `json:"cellsUpdated"`
	SkippedMachineTypes int64         `json:"skippedMachineTypes"`
	SkippedStatuses     int64         `json:"skippedStatuses"`
	SummaryRebuilds     int64         `json:"summaryRebuilds"`
	LastSubmission      *time.Time    `json:"lastSubmission,omitempty"`
	LastRebuild         *time.Time    `json:"lastRebuild,omitempty"`
	Limiter             LimiterStatus `json:"limiter"`
}
