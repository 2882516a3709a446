package billing

import (
	"fmt"
	"time"
)

// Period is a half-open [Start, End) query window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MonthStart snaps t to 00:00:00 on the first calendar day of its month.
// Historical queries always use a snapped start boundary so billing periods
// straddling month boundaries are fully included.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthKey returns the YYYY-MM bucket key for t.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// LastMonths returns the period covering the monthsBack months ending at now,
// with the start boundary snapped to month start.
func LastMonths(now time.Time, monthsBack int) Period {
	return Period{
		Start: MonthStart(now.AddDate(0, -monthsBack, 0)),
		End:   now,
	}
}

// LastCalendarMonth returns the full previous calendar month relative to now.
func LastCalendarMonth(now time.Time) Period {
	thisMonth := MonthStart(now)
	return Period{
		Start: thisMonth.AddDate(0, -1, 0),
		End:   thisMonth,
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%s..%s", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}
