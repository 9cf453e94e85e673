package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"earnings/models"
	"earnings/rules"
	"earnings/service"
)

var fixedNow = time.Date(2024, 10, 16, 5, 5, 0, 0, time.UTC)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New()

	require.NoError(t, s.AddJob("CRON_TZ=America/Bogota 0 0 * * *", &countingJob{}))
	assert.Equal(t, 1, s.Entries())

	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Equal(t, 1, s.Entries())
}

func TestScheduler_RunNow(t *testing.T) {
	s := New()
	job := &countingJob{err: errors.New("boom")}

	err := s.RunNow(job)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, job.runs)

	// scheduled runs swallow the error after logging
	s.run(job)
	assert.Equal(t, 2, job.runs)
}

func TestFreezeRuleSchedules(t *testing.T) {
	table := rules.MustDefault()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	early := NewEarlyFreezeJob(nil, table)
	sched, err := parser.Parse(early.Schedule())
	require.NoError(t, err)

	// Early freeze fires at midnight Berlin time
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	next := sched.Next(time.Date(2024, 10, 14, 12, 0, 0, 0, berlin))
	assert.Equal(t, time.Date(2024, 10, 15, 0, 0, 0, 0, berlin), next.In(berlin))

	rule, ok := table.CustomFreeze("dxlive")
	require.True(t, ok)
	dx := NewCustomFreezeJob(nil, rule)
	assert.Equal(t, "freeze_dxlive", dx.Name())

	sched, err = parser.Parse(dx.Schedule())
	require.NoError(t, err)
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	next = sched.Next(time.Date(2024, 10, 15, 9, 0, 0, 0, bogota))
	assert.Equal(t, time.Date(2024, 10, 15, 10, 0, 0, 0, bogota), next.In(bogota))
}

func TestFreezeJob_Run(t *testing.T) {
	t.Run("early freeze", func(t *testing.T) {
		freeze := new(service.MockFreezeService)
		job := NewEarlyFreezeJob(freeze, rules.MustDefault())
		job.now = func() time.Time { return fixedNow }
		freeze.On("RunEarlyFreeze", mock.Anything, fixedNow, false).
			Return(&service.FreezeResult{Rule: "early_freeze", Skipped: true, Reason: "not a period closing day"}, nil)

		require.NoError(t, job.Run())
		freeze.AssertExpectations(t)
	})

	t.Run("custom freeze error", func(t *testing.T) {
		freeze := new(service.MockFreezeService)
		rule, _ := rules.MustDefault().CustomFreeze("dxlive")
		job := NewCustomFreezeJob(freeze, rule)
		job.now = func() time.Time { return fixedNow }
		freeze.On("RunCustomFreeze", mock.Anything, "dxlive", fixedNow, false).
			Return(nil, errors.New("db down"))

		err := job.Run()

		assert.EqualError(t, err, "freeze dxlive: db down")
		freeze.AssertExpectations(t)
	})
}

func TestCloseJob_Run(t *testing.T) {
	closure := new(service.MockClosureService)
	job := NewCloseJob(closure)
	job.now = func() time.Time { return fixedNow }
	period := models.PeriodFor(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))
	closure.On("CloseDue", mock.Anything, fixedNow).Return(&service.ClosureResult{
		Period:   period,
		Status:   models.ClosureStateFailed,
		Archived: 4,
		Errors:   []service.ModelClosureError{{Error: "boom"}},
	}, nil)

	assert.NoError(t, job.Run())
	closure.AssertExpectations(t)
}

func TestRegisterAll(t *testing.T) {
	s := New()
	table := rules.MustDefault()

	require.NoError(t, RegisterAll(s, table, "America/Bogota", new(service.MockFreezeService), new(service.MockClosureService)))

	// early freeze, one job per custom freeze, and the closure
	assert.Equal(t, 2+len(table.CustomFreezes), s.Entries())
}

func TestCloseSchedule(t *testing.T) {
	assert.Equal(t, "CRON_TZ=America/Bogota 5 0 * * *", CloseSchedule("America/Bogota"))
}
