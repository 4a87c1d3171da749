package schema

import (
	"fmt"
	"regexp"
	"time"
)

// Fixed sheet names.
const (
	LogSheetName     = "Submission Log"
	SummarySheetName = "Summary"
)

// DateLayout is the accepted submission date format.
const DateLayout = "2006-01-02"

var dateSheetPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)

// SheetName derives the date sheet name ("DD/MM") from a YYYY-MM-DD date.
// The year is not part of the name, so the same day in different years
// shares a sheet.
func SheetName(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return fmt.Sprintf("%02d/%02d", t.Day(), int(t.Month())), nil
}

// IsDateSheetName reports whether name follows the date sheet convention.
func IsDateSheetName(name string) bool {
	return dateSheetPattern.MatchString(name)
}
