// Package core records machine-status submissions into date sheets and
// rebuilds the cross-date summary.
//
// It is independent of any transport. The web handlers, the machinectl CLI
// and the tests all drive the same [Service].
//
// # Submissions
//
// [Service.Apply] validates a [Submission] in a fixed order (required fields,
// factory, ownership, date format, machine list) and rejects it whole on the
// first failure. An accepted submission is folded into the sheet named after
// its date with an additive merge: every (machine type, status) count is
// added to whatever the target cell already holds, with non-numeric and empty
// cells read as zero. One row is then appended to the submission log.
//
// Machine types and statuses the schema does not know are skipped whatever
// their value, as are known statuses whose count is not a number. Each skip
// is logged and, once the submission is accepted, counted in [Stats] so a
// misspelt status cannot drop data without trace.
//
// The read-modify-write on a date sheet and the log append run under that
// sheet's lock, so two submissions for the same day never lose each other's
// counts. If a cell write or the log append fails, the cells already written
// are put back before the lock is released.
//
// # Summary
//
// [Service.ComputeSummary] re-derives every coordinate from the schema and
// sums it across all date sheets. Sheets are read in parallel; a sheet that
// fails to read contributes nothing and is reported in [Summary.SkippedSheets].
// [Service.RebuildSummary] additionally rewrites the summary sheet.
//
// # Error Handling
//
// [ValidationError] carries a message meant for the operator verbatim.
// Everything else is mapped to a support code with [MapError]:
//
//   - VAL001-VAL007: payload validation
//   - STORE001-STORE002: sheet store failures
//   - LOCK001: sheet lock timeouts
//   - SUB001: too many submissions in flight
//   - REQ001-REQ002: cancelled or timed out requests
//   - RATE001: rate limiting
package core
