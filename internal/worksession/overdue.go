package worksession

import (
	"time"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// IsOverdue reports whether a ticket in state has passed its expected date.
// Completed work is never overdue. The comparison is by calendar date: a
// ticket due today is not overdue until the date changes in now's location.
func IsOverdue(expectedDate time.Time, state domain.WorkState, now time.Time) bool {
	if state == domain.WorkStateDevCompleted || expectedDate.IsZero() {
		return false
	}
	return calendarDate(now).After(calendarDate(expectedDate))
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
