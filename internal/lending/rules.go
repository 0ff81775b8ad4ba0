package lending

import (
	"time"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// Rules carries the configurable lending parameters.  One value is built
// from config at startup and shared by handlers and the expiry worker.
type Rules struct {
	BookLoanDays       int // business days a book copy is lent for
	ResourceCutoffHour int // hour of day (0-23) resource loans are due back at
	ReservationDays    int // business days a reservation stays pendiente
	MaxActiveItems     int // combined open loans + pending reservations allowed per non-profesor
}

// DefaultRules returns the values the school operates with: ten business
// days for books, resources back by 17:00, two business days to pick up a
// reservation, one active item per borrower.
func DefaultRules() Rules {
	return Rules{
		BookLoanDays:       10,
		ResourceCutoffHour: 17,
		ReservationDays:    2,
		MaxActiveItems:     1,
	}
}

// DueDate computes a loan's fechaVencimiento.  Book copies are due after
// BookLoanDays business days, keeping the time of day.  Resource instances
// are due the same day at the cutoff hour; a loan created at or after the
// cutoff is due the next business day at the cutoff hour.
func (r Rules) DueDate(kind model.ItemKind, now time.Time) time.Time {
	if kind == model.KindExemplar {
		return AddBusinessDays(now, r.BookLoanDays)
	}
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), r.ResourceCutoffHour, 0, 0, 0, now.Location())
	if now.Before(cutoff) {
		return cutoff
	}
	next := AddBusinessDays(now, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), r.ResourceCutoffHour, 0, 0, 0, next.Location())
}

// ReservationExpiry computes how long a pending reservation may wait to be
// picked up.
func (r Rules) ReservationExpiry(now time.Time) time.Time {
	return AddBusinessDays(now, r.ReservationDays)
}

// LateDays returns how many sanction days a late return earns: the late
// interval rounded up to whole 24-hour days.  Zero when returned on time.
func LateDays(due, returned time.Time) int {
	if !returned.After(due) {
		return 0
	}
	late := returned.Sub(due)
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// SanctionUntil places the end of a borrowing ban lateDays calendar days
// after the return instant.  Sanctions count calendar days, not business
// days: a weekend spent late still costs.
func SanctionUntil(returned time.Time, lateDays int) time.Time {
	return returned.AddDate(0, 0, lateDays)
}
