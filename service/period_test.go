package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings/models"
)

func dateUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func testCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar("America/Bogota")
	require.NoError(t, err)
	return cal
}

func TestNewCalendar_InvalidTimezone(t *testing.T) {
	_, err := NewCalendar("Mars/Olympus")
	assert.Error(t, err)
}

func TestCalendar_CurrentPeriod(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name     string
		now      time.Time
		expected models.Period
	}{
		{
			name:     "first half",
			now:      time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC),
			expected: models.Period{Date: dateUTC(2024, 10, 1), Type: models.PeriodFirstHalf},
		},
		{
			name:     "second half",
			now:      time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC),
			expected: models.Period{Date: dateUTC(2024, 10, 16), Type: models.PeriodSecondHalf},
		},
		{
			// 02:00 UTC on the 16th is still the evening of the 15th in Bogota
			name:     "business day lags UTC",
			now:      time.Date(2024, 10, 16, 2, 0, 0, 0, time.UTC),
			expected: models.Period{Date: dateUTC(2024, 10, 1), Type: models.PeriodFirstHalf},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cal.CurrentPeriod(tt.now))
		})
	}
}

func TestCalendar_BoundaryDays(t *testing.T) {
	cal := testCalendar(t)
	bogota := cal.Location()

	tests := []struct {
		name    string
		now     time.Time
		closing bool
		opening bool
	}{
		{"15th", time.Date(2024, 10, 15, 10, 0, 0, 0, bogota), true, false},
		{"16th", time.Date(2024, 10, 16, 0, 5, 0, 0, bogota), false, true},
		{"1st", time.Date(2024, 11, 1, 0, 5, 0, 0, bogota), false, true},
		{"31st", time.Date(2024, 10, 31, 10, 0, 0, 0, bogota), true, false},
		{"leap February end", time.Date(2024, 2, 29, 10, 0, 0, 0, bogota), true, false},
		{"February 28th in leap year", time.Date(2024, 2, 28, 10, 0, 0, 0, bogota), false, false},
		{"mid period", time.Date(2024, 10, 9, 10, 0, 0, 0, bogota), false, false},
		// Midnight Berlin on the 16th is still the 15th in Bogota
		{"midnight Berlin", time.Date(2024, 10, 15, 22, 0, 0, 0, time.UTC), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.closing, cal.IsClosingDay(tt.now), "closing")
			assert.Equal(t, tt.opening, cal.IsOpeningDay(tt.now), "opening")
			assert.Equal(t, tt.closing || tt.opening, cal.IsBoundaryDay(tt.now), "boundary")
		})
	}
}

func TestPeriod_Navigation(t *testing.T) {
	first := models.Period{Date: dateUTC(2024, 3, 1), Type: models.PeriodFirstHalf}

	assert.Equal(t, models.Period{Date: dateUTC(2024, 2, 16), Type: models.PeriodSecondHalf}, first.Previous())
	assert.Equal(t, models.Period{Date: dateUTC(2024, 3, 16), Type: models.PeriodSecondHalf}, first.Next())
	assert.Equal(t, dateUTC(2024, 2, 29), first.Previous().EndDate())
}
