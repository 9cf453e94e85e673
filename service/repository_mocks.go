package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"earnings/events"
	"earnings/models"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListModels(ctx context.Context, groupIDs []uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, groupIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

// MockRateRepository is a mock implementation of RateRepository
type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) GetCurrent(ctx context.Context) ([]*models.Rate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rate), args.Error(1)
}

func (m *MockRateRepository) GetEffectiveAt(ctx context.Context, at time.Time) ([]*models.Rate, error) {
	args := m.Called(ctx, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rate), args.Error(1)
}

func (m *MockRateRepository) CloseCurrent(ctx context.Context, kind models.RateKind, scope string, at time.Time) (int64, error) {
	args := m.Called(ctx, kind, scope, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateRepository) Create(ctx context.Context, rate *models.Rate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

// MockPlatformRepository is a mock implementation of PlatformRepository
type MockPlatformRepository struct {
	mock.Mock
}

func (m *MockPlatformRepository) GetAll(ctx context.Context, includeInactive bool) ([]*models.Platform, error) {
	args := m.Called(ctx, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Platform), args.Error(1)
}

// MockPayoutConfigRepository is a mock implementation of PayoutConfigRepository
type MockPayoutConfigRepository struct {
	mock.Mock
}

func (m *MockPayoutConfigRepository) GetActive(ctx context.Context, modelID uuid.UUID) (*models.PayoutConfig, error) {
	args := m.Called(ctx, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutConfig), args.Error(1)
}

func (m *MockPayoutConfigRepository) ListActive(ctx context.Context) ([]*models.PayoutConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PayoutConfig), args.Error(1)
}

func (m *MockPayoutConfigRepository) DeactivateForModel(ctx context.Context, modelID uuid.UUID) error {
	args := m.Called(ctx, modelID)
	return args.Error(0)
}

func (m *MockPayoutConfigRepository) Create(ctx context.Context, cfg *models.PayoutConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockModelValueRepository is a mock implementation of ModelValueRepository
type MockModelValueRepository struct {
	mock.Mock
}

func (m *MockModelValueRepository) GetByModelAndPeriod(ctx context.Context, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error) {
	args := m.Called(ctx, modelID, periodDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ModelValue), args.Error(1)
}

func (m *MockModelValueRepository) Upsert(ctx context.Context, value *models.ModelValue) error {
	args := m.Called(ctx, value)
	return args.Error(0)
}

func (m *MockModelValueRepository) LockByModelAndPeriod(ctx context.Context, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error) {
	args := m.Called(ctx, modelID, periodDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ModelValue), args.Error(1)
}

func (m *MockModelValueRepository) DeleteByIDs(ctx context.Context, modelID uuid.UUID, ids []int64) (int64, error) {
	args := m.Called(ctx, modelID, ids)
	return args.Get(0).(int64), args.Error(1)
}

// MockHistoryRepository is a mock implementation of HistoryRepository
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) CreateBatch(ctx context.Context, records []*models.HistoryRecord) (int64, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHistoryRepository) List(ctx context.Context, filter models.HistoryFilter) ([]*models.HistoryRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoryRecord), args.Error(1)
}

func (m *MockHistoryRepository) ListMissingRates(ctx context.Context, afterID int64, limit int) ([]*models.HistoryRecord, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoryRecord), args.Error(1)
}

func (m *MockHistoryRepository) FillMissing(ctx context.Context, rec *models.HistoryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockFrozenPlatformRepository is a mock implementation of FrozenPlatformRepository
type MockFrozenPlatformRepository struct {
	mock.Mock
}

func (m *MockFrozenPlatformRepository) Freeze(ctx context.Context, periodDate time.Time, modelID uuid.UUID, platformIDs []string) (int64, error) {
	args := m.Called(ctx, periodDate, modelID, platformIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFrozenPlatformRepository) List(ctx context.Context, periodDate time.Time, modelID *uuid.UUID) ([]*models.FrozenPlatformRecord, error) {
	args := m.Called(ctx, periodDate, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FrozenPlatformRecord), args.Error(1)
}

func (m *MockFrozenPlatformRepository) Delete(ctx context.Context, periodDate time.Time, modelID *uuid.UUID, platformIDs []string) (int64, error) {
	args := m.Called(ctx, periodDate, modelID, platformIDs)
	return args.Get(0).(int64), args.Error(1)
}

// MockClosureStatusRepository is a mock implementation of ClosureStatusRepository
type MockClosureStatusRepository struct {
	mock.Mock
}

func (m *MockClosureStatusRepository) Get(ctx context.Context, period models.Period) (*models.ClosureStatus, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClosureStatus), args.Error(1)
}

func (m *MockClosureStatusRepository) GetForUpdate(ctx context.Context, period models.Period) (*models.ClosureStatus, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClosureStatus), args.Error(1)
}

func (m *MockClosureStatusRepository) GetForShare(ctx context.Context, period models.Period) (*models.ClosureStatus, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClosureStatus), args.Error(1)
}

func (m *MockClosureStatusRepository) Upsert(ctx context.Context, status *models.ClosureStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockRepositories are the repositories a MockUnitOfWork hands out.
// Nil fields panic when a service asks for them.
type MockRepositories struct {
	Users          *MockUserRepository
	Rates          *MockRateRepository
	Platforms      *MockPlatformRepository
	PayoutConfigs  *MockPayoutConfigRepository
	ModelValues    *MockModelValueRepository
	History        *MockHistoryRepository
	FrozenPlatform *MockFrozenPlatformRepository
	ClosureStatus  *MockClosureStatusRepository
	Events         *MockEventPublisher
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	repos MockRepositories
}

// SetRepositories sets the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(repos MockRepositories) {
	m.repos = repos
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	if m.repos.Users == nil {
		panic("mock user repository not set")
	}
	return m.repos.Users
}

func (m *MockUnitOfWork) RateRepository() RateRepository {
	if m.repos.Rates == nil {
		panic("mock rate repository not set")
	}
	return m.repos.Rates
}

func (m *MockUnitOfWork) PlatformRepository() PlatformRepository {
	if m.repos.Platforms == nil {
		panic("mock platform repository not set")
	}
	return m.repos.Platforms
}

func (m *MockUnitOfWork) PayoutConfigRepository() PayoutConfigRepository {
	if m.repos.PayoutConfigs == nil {
		panic("mock payout config repository not set")
	}
	return m.repos.PayoutConfigs
}

func (m *MockUnitOfWork) ModelValueRepository() ModelValueRepository {
	if m.repos.ModelValues == nil {
		panic("mock model value repository not set")
	}
	return m.repos.ModelValues
}

func (m *MockUnitOfWork) HistoryRepository() HistoryRepository {
	if m.repos.History == nil {
		panic("mock history repository not set")
	}
	return m.repos.History
}

func (m *MockUnitOfWork) FrozenPlatformRepository() FrozenPlatformRepository {
	if m.repos.FrozenPlatform == nil {
		panic("mock frozen platform repository not set")
	}
	return m.repos.FrozenPlatform
}

func (m *MockUnitOfWork) ClosureStatusRepository() ClosureStatusRepository {
	if m.repos.ClosureStatus == nil {
		panic("mock closure status repository not set")
	}
	return m.repos.ClosureStatus
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.repos.Events == nil {
		panic("mock event publisher not set")
	}
	return m.repos.Events
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
