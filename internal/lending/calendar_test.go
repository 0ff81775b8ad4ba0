package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mustDate builds a UTC timestamp for test fixtures.
func mustDate(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestAddBusinessDaysZeroReturnsStart(t *testing.T) {
	start := mustDate(2026, time.March, 2, 10, 30) // a Monday
	assert.Equal(t, start, AddBusinessDays(start, 0))
	assert.Equal(t, start, AddBusinessDays(start, -3))
}

func TestAddBusinessDaysWithinWeek(t *testing.T) {
	monday := mustDate(2026, time.March, 2, 10, 0)
	assert.Equal(t, mustDate(2026, time.March, 4, 10, 0), AddBusinessDays(monday, 2))
}

func TestAddBusinessDaysSkipsWeekend(t *testing.T) {
	friday := mustDate(2026, time.March, 6, 15, 0)
	// +1 business day from Friday is Monday.
	assert.Equal(t, mustDate(2026, time.March, 9, 15, 0), AddBusinessDays(friday, 1))
	// +2 lands Tuesday.
	assert.Equal(t, mustDate(2026, time.March, 10, 15, 0), AddBusinessDays(friday, 2))
}

func TestAddBusinessDaysFromWeekendStart(t *testing.T) {
	saturday := mustDate(2026, time.March, 7, 9, 0)
	// The Saturday itself never counts; the first counted day is Monday.
	assert.Equal(t, mustDate(2026, time.March, 9, 9, 0), AddBusinessDays(saturday, 1))
}

func TestAddBusinessDaysPreservesTimeOfDay(t *testing.T) {
	start := mustDate(2026, time.March, 2, 23, 59)
	got := AddBusinessDays(start, 10)
	assert.Equal(t, 23, got.Hour())
	assert.Equal(t, 59, got.Minute())
}

func TestAddBusinessDaysNeverLandsOnWeekend(t *testing.T) {
	start := mustDate(2026, time.January, 1, 12, 0)
	for n := 1; n <= 30; n++ {
		got := AddBusinessDays(start, n)
		assert.NotEqual(t, time.Saturday, got.Weekday(), "n=%d", n)
		assert.NotEqual(t, time.Sunday, got.Weekday(), "n=%d", n)
	}
}

func TestAddBusinessDaysTenFromMonday(t *testing.T) {
	monday := mustDate(2026, time.March, 2, 10, 0)
	// Ten business days span exactly two calendar weeks.
	assert.Equal(t, mustDate(2026, time.March, 16, 10, 0), AddBusinessDays(monday, 10))
}
