package scheduler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"earnings/rules"
	"earnings/service"
)

// CloseSchedule fires shortly after midnight in the business timezone so the
// closure sees the new period's opening day
func CloseSchedule(timezone string) string {
	return fmt.Sprintf("CRON_TZ=%s 5 0 * * *", timezone)
}

const jobTimeout = 10 * time.Minute

// FreezeJob applies one freeze rule at its cutover
type FreezeJob struct {
	freeze service.FreezeService
	rule   rules.FreezeRule
	early  bool
	now    func() time.Time
}

// NewEarlyFreezeJob creates the job for the table's early freeze
func NewEarlyFreezeJob(freeze service.FreezeService, table *rules.Table) *FreezeJob {
	return &FreezeJob{freeze: freeze, rule: table.EarlyFreeze, early: true, now: time.Now}
}

// NewCustomFreezeJob creates the job for a named custom freeze
func NewCustomFreezeJob(freeze service.FreezeService, rule rules.FreezeRule) *FreezeJob {
	return &FreezeJob{freeze: freeze, rule: rule, now: time.Now}
}

// Name returns the job name
func (j *FreezeJob) Name() string {
	return "freeze_" + j.rule.Name
}

// Schedule returns the cron spec of the rule's cutover
func (j *FreezeJob) Schedule() string {
	return j.rule.CronSpec()
}

// Run executes the freeze
func (j *FreezeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	var (
		result *service.FreezeResult
		err    error
	)
	if j.early {
		result, err = j.freeze.RunEarlyFreeze(ctx, j.now(), false)
	} else {
		result, err = j.freeze.RunCustomFreeze(ctx, j.rule.Name, j.now(), false)
	}
	if err != nil {
		return fmt.Errorf("freeze %s: %w", j.rule.Name, err)
	}

	log.WithFields(log.Fields{
		"rule":    result.Rule,
		"period":  result.Period.String(),
		"skipped": result.Skipped,
		"reason":  result.Reason,
	}).Info("Freeze job finished")
	return nil
}

// CloseJob closes the previous period on opening days
type CloseJob struct {
	closure service.ClosureService
	now     func() time.Time
}

// NewCloseJob creates the period closure job
func NewCloseJob(closure service.ClosureService) *CloseJob {
	return &CloseJob{closure: closure, now: time.Now}
}

// Name returns the job name
func (j *CloseJob) Name() string {
	return "period_close"
}

// Run executes the closure
func (j *CloseJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.closure.CloseDue(ctx, j.now())
	if err != nil {
		return fmt.Errorf("period close: %w", err)
	}

	fields := log.Fields{
		"period":   result.Period.String(),
		"skipped":  result.Skipped,
		"archived": result.Archived,
		"reset":    result.Reset,
		"errors":   len(result.Errors),
	}
	if len(result.Errors) > 0 {
		log.WithFields(fields).Warn("Period close finished with model failures")
		return nil
	}
	log.WithFields(fields).Info("Period close finished")
	return nil
}

// RegisterAll adds the freeze and closure jobs for a rule table
func RegisterAll(s *Scheduler, table *rules.Table, timezone string, freeze service.FreezeService, closure service.ClosureService) error {
	var jobs []*FreezeJob
	if len(table.EarlyFreeze.Platforms) > 0 {
		jobs = append(jobs, NewEarlyFreezeJob(freeze, table))
	}
	for _, rule := range table.CustomFreezes {
		jobs = append(jobs, NewCustomFreezeJob(freeze, rule))
	}

	for _, job := range jobs {
		if err := s.AddJob(job.Schedule(), job); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	}
	if err := s.AddJob(CloseSchedule(timezone), NewCloseJob(closure)); err != nil {
		return fmt.Errorf("failed to register period close: %w", err)
	}
	return nil
}
