package shared

import "time"

// Trailing window selectors offered by the dashboard period pickers.
const (
	PeriodOneMonth    = "1month"
	PeriodThreeMonths = "3months"
	PeriodSixMonths   = "6months"
	PeriodOneYear     = "1year"
)

// Periods lists the recognised selectors, shortest first.
var Periods = []string{PeriodOneMonth, PeriodThreeMonths, PeriodSixMonths, PeriodOneYear}

// PeriodMonths maps a selector to its trailing month count. Unrecognised
// selectors fall back to fallback.
func PeriodMonths(period string, fallback int) int {
	switch period {
	case PeriodOneMonth:
		return 1
	case PeriodThreeMonths:
		return 3
	case PeriodSixMonths:
		return 6
	case PeriodOneYear:
		return 12
	default:
		return fallback
	}
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddMonths shifts t by n calendar months, clamping the day to the end of the
// target month, so 31 March minus one month is the last day of February.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := DaysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthStart returns the first day of t's month at midnight.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
