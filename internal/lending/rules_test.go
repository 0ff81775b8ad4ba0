package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

func TestDueDateBookTenBusinessDays(t *testing.T) {
	r := DefaultRules()
	monday := mustDate(2026, time.March, 2, 10, 0)
	due := r.DueDate(model.KindExemplar, monday)
	assert.Equal(t, mustDate(2026, time.March, 16, 10, 0), due)
}

func TestDueDateResourceBeforeCutoffSameDay(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 3, 9, 15) // Tuesday morning
	due := r.DueDate(model.KindResourceInstance, now)
	assert.Equal(t, mustDate(2026, time.March, 3, 17, 0), due)
}

func TestDueDateResourceAfterCutoffNextBusinessDay(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 3, 18, 30) // Tuesday evening
	due := r.DueDate(model.KindResourceInstance, now)
	assert.Equal(t, mustDate(2026, time.March, 4, 17, 0), due)
}

func TestDueDateResourceAtCutoffRollsOver(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 3, 17, 0)
	due := r.DueDate(model.KindResourceInstance, now)
	assert.Equal(t, mustDate(2026, time.March, 4, 17, 0), due)
}

func TestDueDateResourceFridayEveningDueMonday(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 6, 18, 0) // Friday after cutoff
	due := r.DueDate(model.KindResourceInstance, now)
	assert.Equal(t, mustDate(2026, time.March, 9, 17, 0), due)
}

func TestDueDateRespectsConfiguredCutoff(t *testing.T) {
	r := DefaultRules()
	r.ResourceCutoffHour = 18
	now := mustDate(2026, time.March, 3, 17, 30)
	due := r.DueDate(model.KindResourceInstance, now)
	assert.Equal(t, mustDate(2026, time.March, 3, 18, 0), due)
}

func TestReservationExpiryTwoBusinessDays(t *testing.T) {
	r := DefaultRules()
	thursday := mustDate(2026, time.March, 5, 11, 0)
	// Thursday + 2 business days = Monday.
	assert.Equal(t, mustDate(2026, time.March, 9, 11, 0), r.ReservationExpiry(thursday))
}

func TestLateDaysOnTimeIsZero(t *testing.T) {
	due := mustDate(2026, time.March, 16, 10, 0)
	assert.Zero(t, LateDays(due, due))
	assert.Zero(t, LateDays(due, due.Add(-time.Hour)))
}

func TestLateDaysRoundsUpTo24HourPeriods(t *testing.T) {
	due := mustDate(2026, time.March, 2, 17, 0) // Monday 17:00
	// Returned Wednesday 09:00: 40 hours late, charged as 2 days.
	returned := mustDate(2026, time.March, 4, 9, 0)
	assert.Equal(t, 2, LateDays(due, returned))
	// One minute late still costs a full day.
	assert.Equal(t, 1, LateDays(due, due.Add(time.Minute)))
	// Exactly 24 hours is one day, not two.
	assert.Equal(t, 1, LateDays(due, due.Add(24*time.Hour)))
}

func TestSanctionUntilCountsCalendarDays(t *testing.T) {
	returned := mustDate(2026, time.March, 6, 12, 0) // Friday
	// Two sanction days run through the weekend.
	assert.Equal(t, mustDate(2026, time.March, 8, 12, 0), SanctionUntil(returned, 2))
}
