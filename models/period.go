package models

import (
	"fmt"
	"time"
)

// PeriodType names one half of a month
type PeriodType string

const (
	PeriodFirstHalf  PeriodType = "1-15"
	PeriodSecondHalf PeriodType = "16-31"
)

// Valid reports whether the period type is known
func (t PeriodType) Valid() bool {
	return t == PeriodFirstHalf || t == PeriodSecondHalf
}

// DateLayout is the wire and storage layout of period dates
const DateLayout = "2006-01-02"

// Period is a half-month billing window identified by its first day
type Period struct {
	Date time.Time  `json:"period_date"`
	Type PeriodType `json:"period_type"`
}

// PeriodFor returns the period containing t, using t's location to pick the calendar day
func PeriodFor(t time.Time) Period {
	if t.Day() <= 15 {
		return Period{
			Date: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC),
			Type: PeriodFirstHalf,
		}
	}
	return Period{
		Date: time.Date(t.Year(), t.Month(), 16, 0, 0, 0, 0, time.UTC),
		Type: PeriodSecondHalf,
	}
}

// ParsePeriod builds a period from its date and validates the type matches the date
func ParsePeriod(date string, periodType PeriodType) (Period, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period date %q: %w", date, err)
	}
	p := PeriodFor(d)
	if periodType != "" && periodType != p.Type {
		return Period{}, fmt.Errorf("period type %q does not match date %s", periodType, date)
	}
	if !d.Equal(p.Date) {
		return Period{}, fmt.Errorf("period date %s is not the first day of a period", date)
	}
	return p, nil
}

// EndDate returns the last calendar day of the period
func (p Period) EndDate() time.Time {
	if p.Type == PeriodFirstHalf {
		return time.Date(p.Date.Year(), p.Date.Month(), 15, 0, 0, 0, 0, time.UTC)
	}
	return LastDayOfMonth(p.Date)
}

// Previous returns the period immediately before p
func (p Period) Previous() Period {
	return PeriodFor(p.Date.AddDate(0, 0, -1))
}

// Next returns the period immediately after p
func (p Period) Next() Period {
	return PeriodFor(p.EndDate().AddDate(0, 0, 1))
}

// DateString returns the period date in storage layout
func (p Period) DateString() string {
	return p.Date.Format(DateLayout)
}

func (p Period) String() string {
	return fmt.Sprintf("%s (%s)", p.DateString(), p.Type)
}

// LastDayOfMonth returns the last calendar day of t's month
func LastDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}
