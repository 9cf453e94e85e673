package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"earnings/events"
	"earnings/models"
	"earnings/rules"
)

// 00:05 in Bogota on the 16th
var closureNow = time.Date(2024, 10, 16, 5, 5, 0, 0, time.UTC)

func newTestClosureService(t *testing.T, m *testMocks, rateService RateService) *closureService {
	return &closureService{
		uowFactory:  m.factory,
		rateService: rateService,
		calculator:  NewPayoutCalculator(rules.MustDefault()),
		calendar:    testCalendar(t),
		now:         func() time.Time { return closureNow },
	}
}

func TestClosureService_ClosePeriod_ArchivesThenResets(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	period := firstPeriodOfOctober()
	modelID := uuid.New()

	var calls []string
	var archived []*models.HistoryRecord

	m.closureStatus.On("GetForUpdate", ctx, period).Return(nil, nil)
	m.closureStatus.On("Upsert", ctx, mock.MatchedBy(func(s *models.ClosureStatus) bool {
		return s.Status == models.ClosureStateClosingCalculators
	})).Return(nil).Once()
	m.closureStatus.On("Upsert", ctx, mock.MatchedBy(func(s *models.ClosureStatus) bool {
		return s.Status == models.ClosureStateCompleted && s.Metadata["closure"] != nil
	})).Return(nil).Once()
	m.configs.On("ListActive", ctx).Return([]*models.PayoutConfig{
		{ModelID: modelID, EnabledPlatforms: []string{"onlyfans"}, Active: true},
	}, nil)
	m.platforms.On("GetAll", ctx, true).Return(platformList(), nil)
	m.values.On("LockByModelAndPeriod", ctx, modelID, period.Date).Return([]*models.ModelValue{
		{ID: 41, ModelID: modelID, PlatformID: "onlyfans", PeriodDate: period.Date, Value: dec("150")},
	}, nil)
	m.history.On("CreateBatch", ctx, mock.Anything).Run(func(args mock.Arguments) {
		calls = append(calls, "archive")
		archived = args.Get(1).([]*models.HistoryRecord)
	}).Return(int64(1), nil)
	m.values.On("DeleteByIDs", ctx, modelID, []int64{41}).Run(func(args mock.Arguments) {
		calls = append(calls, "reset")
	}).Return(int64(1), nil)
	m.events.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		closed, ok := e.(events.PeriodClosedEvent)
		return ok && closed.Status == models.ClosureStateCompleted && closed.Archived == 1 && closed.Reset == 1
	})).Return()
	m.expectCommit()

	service := newTestClosureService(t, m, defaultRateService(ctx))
	result, err := service.ClosePeriod(ctx, period)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, models.ClosureStateCompleted, result.Status)
	assert.Equal(t, 1, result.Models)
	assert.Equal(t, int64(1), result.Archived)
	assert.Equal(t, int64(1), result.Reset)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"archive", "reset"}, calls)

	require.Len(t, archived, 1)
	rec := archived[0]
	assert.True(t, dec("150").Equal(rec.Value))
	assert.Equal(t, period.Date, rec.PeriodDate)
	assert.Equal(t, period.Type, rec.PeriodType)
	require.NotNil(t, rec.ValueUSDBruto)
	require.NotNil(t, rec.ValueUSDModelo)
	require.NotNil(t, rec.ValueCOPModelo)
	assert.True(t, dec("150").Equal(*rec.ValueUSDBruto))
	assert.True(t, dec("120").Equal(*rec.ValueUSDModelo))
	assert.True(t, dec("468000").Equal(*rec.ValueCOPModelo))
	assert.False(t, rec.MissingRates())

	m.assertExpectations(t)
	m.uow.AssertNumberOfCalls(t, "Commit", 3)
}

func TestClosureService_ClosePeriod_AlreadyClosed(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	period := firstPeriodOfOctober()

	m.closureStatus.On("GetForUpdate", ctx, period).Return(&models.ClosureStatus{Status: models.ClosureStateCompleted}, nil)

	service := newTestClosureService(t, m, new(MockRateService))
	result, err := service.ClosePeriod(ctx, period)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, models.ClosureStateCompleted, result.Status)
	m.history.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	m.values.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything)
	m.closureStatus.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestClosureService_ClosePeriod_FailedModelKeepsValues(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	period := firstPeriodOfOctober()
	failing := uuid.New()
	healthy := uuid.New()
	empty := uuid.New()

	m.closureStatus.On("GetForUpdate", ctx, period).Return(&models.ClosureStatus{
		Status:   models.ClosureStateFailed,
		Metadata: map[string]interface{}{"freezes": map[string]interface{}{}},
	}, nil)
	m.closureStatus.On("Upsert", ctx, mock.Anything).Return(nil)
	m.configs.On("ListActive", ctx).Return([]*models.PayoutConfig{
		{ModelID: failing, Active: true},
		{ModelID: healthy, Active: true},
		{ModelID: empty, Active: true},
	}, nil)
	m.platforms.On("GetAll", ctx, true).Return(platformList(), nil)
	m.values.On("LockByModelAndPeriod", ctx, failing, period.Date).Return([]*models.ModelValue{
		{ModelID: failing, PlatformID: "big7", Value: dec("10")},
	}, nil)
	m.values.On("LockByModelAndPeriod", ctx, healthy, period.Date).Return([]*models.ModelValue{
		{ID: 7, ModelID: healthy, PlatformID: "big7", Value: dec("20")},
	}, nil)
	m.values.On("LockByModelAndPeriod", ctx, empty, period.Date).Return([]*models.ModelValue{}, nil)
	m.history.On("CreateBatch", ctx, mock.MatchedBy(func(recs []*models.HistoryRecord) bool {
		return len(recs) == 1 && recs[0].ModelID == failing
	})).Return(int64(0), errors.New("disk full"))
	m.history.On("CreateBatch", ctx, mock.MatchedBy(func(recs []*models.HistoryRecord) bool {
		return len(recs) == 1 && recs[0].ModelID == healthy
	})).Return(int64(1), nil)
	m.values.On("DeleteByIDs", ctx, healthy, []int64{7}).Return(int64(1), nil)
	m.events.On("Publish", mock.Anything).Return()
	m.expectCommit()

	service := newTestClosureService(t, m, defaultRateService(ctx))
	result, err := service.ClosePeriod(ctx, period)

	require.NoError(t, err)
	assert.Equal(t, models.ClosureStateFailed, result.Status)
	assert.Equal(t, 2, result.Models)
	assert.Equal(t, int64(1), result.Archived)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, failing, result.Errors[0].ModelID)

	m.values.AssertNotCalled(t, "DeleteByIDs", ctx, failing, mock.Anything)
	m.values.AssertNotCalled(t, "DeleteByIDs", ctx, empty, mock.Anything)
}

func TestClosureService_ClosePeriod_ConflictingHistoryKeepsValues(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	period := firstPeriodOfOctober()
	modelID := uuid.New()

	m.closureStatus.On("GetForUpdate", ctx, period).Return(nil, nil)
	m.closureStatus.On("Upsert", ctx, mock.Anything).Return(nil)
	m.configs.On("ListActive", ctx).Return([]*models.PayoutConfig{
		{ModelID: modelID, Active: true},
	}, nil)
	m.platforms.On("GetAll", ctx, true).Return(platformList(), nil)
	m.values.On("LockByModelAndPeriod", ctx, modelID, period.Date).Return([]*models.ModelValue{
		{ID: 1, ModelID: modelID, PlatformID: "onlyfans", Value: dec("150")},
		{ID: 2, ModelID: modelID, PlatformID: "big7", Value: dec("20")},
	}, nil)
	// one of the two rows already exists in history
	m.history.On("CreateBatch", ctx, mock.Anything).Return(int64(1), nil)
	m.events.On("Publish", mock.Anything).Return()
	m.expectCommit()

	service := newTestClosureService(t, m, defaultRateService(ctx))
	result, err := service.ClosePeriod(ctx, period)

	require.NoError(t, err)
	assert.Equal(t, models.ClosureStateFailed, result.Status)
	assert.Equal(t, 0, result.Models)
	assert.Equal(t, int64(0), result.Reset)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, modelID, result.Errors[0].ModelID)
	assert.Contains(t, result.Errors[0].Error, "already archived")
	m.values.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestClosureService_CloseDue(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the previous period on an opening day", func(t *testing.T) {
		m := newTestMocks(ctx)
		period := firstPeriodOfOctober()

		m.closureStatus.On("GetForUpdate", ctx, period).Return(&models.ClosureStatus{Status: models.ClosureStateCompleted}, nil)

		service := newTestClosureService(t, m, new(MockRateService))
		result, err := service.CloseDue(ctx, closureNow)

		require.NoError(t, err)
		assert.Equal(t, period, result.Period)
		m.closureStatus.AssertExpectations(t)
	})

	t.Run("does nothing mid period", func(t *testing.T) {
		m := newTestMocks(ctx)

		service := newTestClosureService(t, m, new(MockRateService))
		result, err := service.CloseDue(ctx, time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC))

		require.NoError(t, err)
		assert.True(t, result.Skipped)
		m.factory.AssertNotCalled(t, "Create")
	})
}

func TestClosureService_ForceReset_RequiresAdmin(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)

	service := newTestClosureService(t, m, new(MockRateService))
	_, err := service.ForceReset(ctx, testUser(models.RoleModel), firstPeriodOfOctober())

	assert.True(t, errors.Is(err, ErrForbidden), "got %v", err)
	m.factory.AssertNotCalled(t, "Create")
}

func TestClosureService_BackfillRates(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	modelID := uuid.New()
	archivedAt := time.Date(2024, 9, 16, 5, 5, 0, 0, time.UTC)

	legacy := &models.HistoryRecord{
		ID:         42,
		ModelID:    modelID,
		PlatformID: "big7",
		Value:      dec("100"),
		RateUSDCOP: decPtr("4000"),
		ArchivedAt: archivedAt,
	}
	orphan := &models.HistoryRecord{ID: 43, ModelID: modelID, PlatformID: "gone", Value: dec("1"), ArchivedAt: archivedAt}

	m.configs.On("ListActive", ctx).Return([]*models.PayoutConfig{
		{ModelID: modelID, PercentageOverride: decPtr("80"), Active: true},
	}, nil)
	m.platforms.On("GetAll", ctx, true).Return(platformList(), nil)
	m.history.On("ListMissingRates", ctx, int64(0), backfillBatchSize).Return([]*models.HistoryRecord{legacy, orphan}, nil)
	m.history.On("ListMissingRates", ctx, int64(43), backfillBatchSize).Return([]*models.HistoryRecord{}, nil)
	m.history.On("FillMissing", ctx, mock.MatchedBy(func(rec *models.HistoryRecord) bool {
		return rec.ID == 42 &&
			rec.RateUSDCOP.Equal(dec("4000")) &&
			rec.RateEURUSD.Equal(dec("1.01")) &&
			rec.ValueUSDBruto.Equal(dec("84.84")) &&
			rec.PercentageApplied.Equal(dec("80")) &&
			rec.ValueUSDModelo.Equal(dec("67.872")) &&
			rec.ValueCOPModelo.Equal(dec("271488"))
	})).Return(nil)
	m.expectCommit()

	rateService := new(MockRateService)
	rateService.On("RatesAt", ctx, archivedAt, (*uuid.UUID)(nil)).Return(resolveRates(nil, nil))

	service := newTestClosureService(t, m, rateService)
	result, err := service.BackfillRates(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)

	m.history.AssertExpectations(t)
}
