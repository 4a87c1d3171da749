package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/logging"
	"github.com/JonMunkholm/machinelog/internal/schema"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const restoreTimeout = 5 * time.Second

// cellDelta is one additive write into a date sheet.
type cellDelta struct {
	at    grid.Coord
	count float64
}

// skip is a submitted entry left out of the merge. Status is empty when the
// whole machine type was skipped.
type skip struct {
	machineType string
	status      string
	reason      string
}

func (k skip) String() string {
	if k.status == "" {
		return k.machineType
	}
	return k.machineType + "/" + k.status
}

// ApplyJSON decodes raw and applies it.
func (s *Service) ApplyJSON(ctx context.Context, raw []byte) (*Acknowledgement, error) {
	sub, err := Decode(raw)
	if err != nil {
		s.stats.rejected.Add(1)
		return nil, err
	}
	return s.Apply(ctx, sub)
}

// Apply validates sub and folds it into its date sheet, then appends one row
// to the submission log. Nothing is written if validation fails, and the
// sheet is restored if the log row cannot be written.
func (s *Service) Apply(ctx context.Context, sub *Submission) (*Acknowledgement, error) {
	if err := s.validator.Validate(sub); err != nil {
		s.stats.rejected.Add(1)
		return nil, err
	}

	sheetName, err := schema.SheetName(sub.Date)
	if err != nil {
		s.stats.rejected.Add(1)
		return nil, ValidationError{Field: "date", Value: sub.Date,
			Message: "invalid date format. Expected YYYY-MM-DD, got: " + sub.Date}
	}

	logger := logging.WithFields(ctx,
		"sheet", sheetName,
		"factory", sub.Factory,
		"ownership", sub.Ownership,
	)

	deltas, skipped, err := s.plan(sub)
	if err != nil {
		s.stats.rejected.Add(1)
		return nil, err
	}
	for _, k := range skipped {
		logger.Warn("skipping submitted entry", "name", k.String(), "reason", k.reason)
	}

	raw, err := payload(sub)
	if err != nil {
		s.stats.failed.Add(1)
		return nil, err
	}
	total := totalMachines(raw)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.stats.failed.Add(1)
		return nil, err
	}
	defer s.limiter.Release()

	received := s.now()
	err = s.withSheet(ctx, sheetName, func(g grid.Grid) error {
		prior, err := merge(ctx, g, deltas)
		if err == nil {
			err = s.appendLog(ctx, sub, raw, total, received)
		}
		if err != nil {
			if rerr := restore(ctx, g, prior); rerr != nil {
				logger.Error("restoring date sheet failed", "error", rerr, "cells", len(prior))
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.stats.failed.Add(1)
		logger.Error("submission not recorded", "error", err)
		return nil, err
	}

	// The counts and the log row are both in the store now. A failed flush
	// leaves them for the next flush; reporting failure would invite a
	// resubmission that counts twice.
	if s.autoFlush {
		if err := grid.Flush(ctx, s.store); err != nil {
			logger.Error("flush after submission failed", "error", err)
		}
	}

	s.stats.accepted.Add(1)
	s.stats.cellsUpdated.Add(int64(len(deltas)))
	s.stats.lastSubmission.Store(stamp(received))
	names := make([]string, len(skipped))
	for i, k := range skipped {
		names[i] = k.String()
		if k.status == "" {
			s.stats.skippedMachineTypes.Add(1)
		} else {
			s.stats.skippedStatuses.Add(1)
		}
	}
	if len(names) == 0 {
		names = nil
	}

	ack := &Acknowledgement{
		ID:            uuid.NewString(),
		Sheet:         sheetName,
		Date:          sub.Date,
		Factory:       sub.Factory,
		Ownership:     sub.Ownership,
		CellsUpdated:  len(deltas),
		TotalMachines: total,
		Skipped:       names,
		ReceivedAt:    received,
		Message:       fmt.Sprintf("Data saved successfully for %s (%s) on %s", sub.Factory, sub.Ownership, sub.Date),
	}

	logger.Info("submission recorded",
		"submission_id", ack.ID,
		"cells_updated", ack.CellsUpdated,
		"total_machines", total,
		"operator", sub.OperatorName,
		"channel", channelFromContext(ctx),
		"client_ip", clientIPFromContext(ctx),
	)
	return ack, nil
}

// plan resolves every known (type, status, count > 0) triple to a cell.
// Repeated entries for the same cell are summed. Unknown names and counts
// that are not numbers come back in skipped.
func (s *Service) plan(sub *Submission) ([]cellDelta, []skip, error) {
	col, err := s.schema.ColumnFor(sub.Factory, schema.Ownership(sub.Ownership))
	if err != nil {
		return nil, nil, err
	}

	byCell := make(map[grid.Coord]float64)
	var order []grid.Coord
	var skipped []skip

	for _, m := range sub.Machines {
		if !s.schema.IsMachineType(m.Type) {
			skipped = append(skipped, skip{machineType: m.Type, reason: "unknown machine type"})
			continue
		}

		statuses := make([]string, 0, len(m.Statuses))
		for st := range m.Statuses {
			statuses = append(statuses, st)
		}
		sort.Strings(statuses)

		for _, st := range statuses {
			if !s.schema.IsStatusType(st) {
				skipped = append(skipped, skip{machineType: m.Type, status: st, reason: "unknown status"})
				continue
			}
			count := m.Statuses[st]
			if !count.Valid {
				skipped = append(skipped, skip{machineType: m.Type, status: st, reason: "count is not a number"})
				continue
			}
			if count.Value <= 0 {
				continue
			}
			row, err := s.schema.RowFor(m.Type, st)
			if err != nil {
				return nil, nil, err
			}
			at := grid.At(row, col)
			if _, seen := byCell[at]; !seen {
				order = append(order, at)
			}
			byCell[at] += count.Value
		}
	}

	deltas := make([]cellDelta, len(order))
	for i, at := range order {
		deltas[i] = cellDelta{at: at, count: byCell[at]}
	}
	return deltas, skipped, nil
}

// withSheet runs fn on the named date sheet while holding its lock.
func (s *Service) withSheet(ctx context.Context, sheetName string, fn func(grid.Grid) error) error {
	release, err := s.locker.Acquire(ctx, sheetName)
	if err != nil {
		return err
	}
	defer release()

	g, err := s.store.GetOrCreate(ctx, sheetName, s.dailyLayout(sheetName))
	if err != nil {
		return err
	}
	return fn(g)
}

// priorCell is a cell value as it was before merge wrote to it.
type priorCell struct {
	at   grid.Coord
	cell grid.Cell
}

// merge adds deltas into g. It returns the prior value of every cell it
// wrote, including when it stops early.
func merge(ctx context.Context, g grid.Grid, deltas []cellDelta) ([]priorCell, error) {
	prior := make([]priorCell, 0, len(deltas))
	for _, d := range deltas {
		cur, err := g.Get(ctx, d.at)
		if err != nil {
			return prior, err
		}
		if err := g.Set(ctx, d.at, grid.Number(countValue(cur)+d.count)); err != nil {
			return prior, err
		}
		prior = append(prior, priorCell{at: d.at, cell: cur})
	}
	return prior, nil
}

// restore puts prior cells back, last write first. It ignores ctx
// cancellation so a timed out submission still undoes its writes.
func restore(ctx context.Context, g grid.Grid, prior []priorCell) error {
	if len(prior) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	var errs []error
	for i := len(prior) - 1; i >= 0; i-- {
		if err := g.Set(ctx, prior[i].at, prior[i].cell); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) appendLog(ctx context.Context, sub *Submission, raw []byte, total float64, received time.Time) error {
	release, err := s.locker.Acquire(ctx, schema.LogSheetName)
	if err != nil {
		return err
	}
	defer release()

	g, err := s.store.GetOrCreate(ctx, schema.LogSheetName, logLayout)
	if err != nil {
		return err
	}

	operator := strings.TrimSpace(sub.OperatorName)
	if operator == "" {
		operator = "N/A"
	}

	return g.AppendRow(ctx, []grid.Cell{
		grid.Text(submittedAt(sub.Timestamp, received).Format(time.RFC3339)),
		grid.Text(sub.Date),
		grid.Text(sub.Factory),
		grid.Text(sub.Ownership),
		grid.Text(operator),
		grid.Number(total),
		grid.Text(string(raw)),
	})
}

// submittedAt prefers the client's timestamp when it parses.
func submittedAt(clientTS string, received time.Time) time.Time {
	if clientTS != "" {
		if t, err := time.Parse(time.RFC3339Nano, clientTS); err == nil {
			return t
		}
	}
	return received
}

// payload returns the compact JSON form of the submission as received, or
// as marshalled when it was built in code.
func payload(sub *Submission) ([]byte, error) {
	raw := []byte(sub.Raw)
	if len(raw) == 0 {
		b, err := json.Marshal(sub)
		if err != nil {
			return nil, fmt.Errorf("encode submission: %w", err)
		}
		raw = b
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw, nil
	}
	return buf.Bytes(), nil
}

// totalMachines sums every numeric status count in the raw payload, known to
// the schema or not.
func totalMachines(raw []byte) float64 {
	var total float64
	gjson.GetBytes(raw, "machines.#.statuses").ForEach(func(_, statuses gjson.Result) bool {
		statuses.ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.Number {
				total += v.Num
			}
			return true
		})
		return true
	})
	return total
}
