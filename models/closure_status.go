package models

import (
	"time"
)

// ClosureState is the progress of a period closure run
type ClosureState string

const (
	ClosureStateEarlyFreezing      ClosureState = "early_freezing"
	ClosureStateClosingCalculators ClosureState = "closing_calculators"
	ClosureStateCompleted          ClosureState = "completed"
	ClosureStateFailed             ClosureState = "failed"
)

// rank orders states along the closure pipeline. A failed run ranks with
// closing_calculators so it can be retried by the closure job.
func (s ClosureState) rank() int {
	switch s {
	case ClosureStateEarlyFreezing:
		return 1
	case ClosureStateClosingCalculators, ClosureStateFailed:
		return 2
	case ClosureStateCompleted:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is at or past target in the pipeline
func (s ClosureState) AtLeast(target ClosureState) bool {
	return s.rank() >= target.rank()
}

// ClosureStatus tracks one closure run per period
type ClosureStatus struct {
	ID         int64                  `db:"id" json:"id"`
	PeriodDate time.Time              `db:"period_date" json:"period_date"`
	PeriodType PeriodType             `db:"period_type" json:"period_type"`
	Status     ClosureState           `db:"status" json:"status"`
	Metadata   map[string]interface{} `db:"metadata" json:"metadata"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time              `db:"updated_at" json:"updated_at"`
}

// IsClosing reports whether a closure run has started on the period. Working
// values must not change from then on.
func (c *ClosureStatus) IsClosing() bool {
	return c != nil && c.Status.AtLeast(ClosureStateClosingCalculators)
}

// IsClosed reports whether the period has been archived and reset
func (c *ClosureStatus) IsClosed() bool {
	return c != nil && c.Status == ClosureStateCompleted
}
