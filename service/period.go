package service

import (
	"fmt"
	"time"

	"earnings/models"
)

// Calendar buckets instants into periods using the business timezone.
// A period belongs to the calendar day the business sees, not UTC.
type Calendar struct {
	loc *time.Location
}

// NewCalendar creates a calendar for the named IANA timezone
func NewCalendar(timezone string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid business timezone %q: %w", timezone, err)
	}
	return &Calendar{loc: loc}, nil
}

// Location returns the business timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Today returns the business calendar date of now as a UTC midnight
func (c *Calendar) Today(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// CurrentPeriod returns the period containing now
func (c *Calendar) CurrentPeriod(now time.Time) models.Period {
	return models.PeriodFor(c.Today(now))
}

// IsClosingDay reports whether now falls on the last day of a period (15th or month end)
func (c *Calendar) IsClosingDay(now time.Time) bool {
	today := c.Today(now)
	return today.Equal(models.PeriodFor(today).EndDate())
}

// IsOpeningDay reports whether now falls on the first day of a period (1st or 16th)
func (c *Calendar) IsOpeningDay(now time.Time) bool {
	today := c.Today(now)
	return today.Equal(models.PeriodFor(today).Date)
}

// IsBoundaryDay reports whether now falls on the 1st, 15th, 16th or last day of the month
func (c *Calendar) IsBoundaryDay(now time.Time) bool {
	return c.IsClosingDay(now) || c.IsOpeningDay(now)
}
