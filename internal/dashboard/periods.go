package dashboard

import (
	"time"

	"github.com/dojo-planner/dojo/internal/shared"
)

// Default windows requested by Load All Data.
const (
	DefaultEarningsPeriod = shared.PeriodOneYear
	DefaultMembersPeriod  = shared.PeriodSixMonths
)

// LabelFormat renders member chart labels, e.g. "Mar 2025".
const LabelFormat = "Jan 2006"

// EarningsStart returns the first day of the earnings window for period,
// counted back from today. Unrecognised periods mean one year.
func EarningsStart(period string, today time.Time) time.Time {
	return shared.AddMonths(shared.Day(today), -shared.PeriodMonths(period, 12))
}

// MemberLabelCount is the number of monthly points drawn for period: the
// trailing months plus the current one. One year is drawn as six months.
func MemberLabelCount(period string) int {
	switch period {
	case shared.PeriodOneMonth:
		return 2
	case shared.PeriodThreeMonths:
		return 4
	default:
		return 7
	}
}

// MemberLabels returns consecutive month labels ending at today's month.
func MemberLabels(period string, today time.Time) []string {
	n := MemberLabelCount(period)
	start := shared.MonthStart(today)
	labels := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		labels = append(labels, start.AddDate(0, -i, 0).Format(LabelFormat))
	}
	return labels
}
