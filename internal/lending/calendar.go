// Package lending holds the pure borrowing rules: the business-day
// calendar, due-date computation, overdue arithmetic and the borrower
// admission policy.  Nothing here touches the database; handlers gather
// the inputs inside their transaction and call these functions.
package lending

import "time"

// AddBusinessDays advances start one calendar day at a time until n
// non-weekend days have been counted.  Saturdays and Sundays are skipped
// but never counted.  The time of day is preserved.  n <= 0 returns start
// unchanged.
func AddBusinessDays(start time.Time, n int) time.Time {
	d := start
	added := 0
	for added < n {
		d = d.AddDate(0, 0, 1)
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			// weekend days do not count toward n
		default:
			added++
		}
	}
	return d
}
