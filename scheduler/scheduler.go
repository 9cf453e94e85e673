package scheduler

import (
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
}

// New creates a new scheduler. Overlapping runs of the same job are skipped.
func New() *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}

// AddJob registers a job. Schedules are standard five-field cron specs and
// may carry a CRON_TZ= prefix, e.g. "CRON_TZ=America/Bogota 0 0 * * *".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.run(job)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"schedule": schedule,
		"job":      job.Name(),
	}).Info("Job registered")

	return nil
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	log.WithField("job", job.Name()).Info("Running job immediately")
	return job.Run()
}

func (s *Scheduler) run(job Job) {
	logger := log.WithField("job", job.Name())
	logger.Debug("Running job")

	if err := job.Run(); err != nil {
		logger.WithError(err).Error("Job failed")
		return
	}
	logger.Debug("Job completed")
}
