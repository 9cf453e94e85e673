package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"earnings/models"
)

// MockRateService is a mock implementation of RateService
type MockRateService struct {
	mock.Mock
}

func (m *MockRateService) ResolveRates(ctx context.Context, groupID *uuid.UUID) *ResolvedRates {
	args := m.Called(ctx, groupID)
	return args.Get(0).(*ResolvedRates)
}

func (m *MockRateService) RatesAt(ctx context.Context, at time.Time, groupID *uuid.UUID) *ResolvedRates {
	args := m.Called(ctx, at, groupID)
	return args.Get(0).(*ResolvedRates)
}

func (m *MockRateService) ListCurrent(ctx context.Context) ([]*models.Rate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rate), args.Error(1)
}

func (m *MockRateService) ActivateRate(ctx context.Context, caller *models.User, kind models.RateKind, scope string, value string) (*models.Rate, error) {
	args := m.Called(ctx, caller, kind, scope, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rate), args.Error(1)
}

// MockCalculatorService is a mock implementation of CalculatorService
type MockCalculatorService struct {
	mock.Mock
}

func (m *MockCalculatorService) ListPlatforms(ctx context.Context) ([]*models.Platform, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Platform), args.Error(1)
}

func (m *MockCalculatorService) GetConfig(ctx context.Context, caller *models.User, modelID uuid.UUID) (*ConfigView, error) {
	args := m.Called(ctx, caller, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ConfigView), args.Error(1)
}

func (m *MockCalculatorService) UpdateConfig(ctx context.Context, caller *models.User, req ConfigUpdate) (*models.PayoutConfig, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutConfig), args.Error(1)
}

func (m *MockCalculatorService) ListModels(ctx context.Context, caller *models.User) ([]*ModelSummary, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ModelSummary), args.Error(1)
}

func (m *MockCalculatorService) AdminView(ctx context.Context, caller *models.User, modelID *uuid.UUID) (*AdminView, error) {
	args := m.Called(ctx, caller, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AdminView), args.Error(1)
}

func (m *MockCalculatorService) GetModelValues(ctx context.Context, caller *models.User, modelID uuid.UUID) (*ModelValuesView, error) {
	args := m.Called(ctx, caller, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ModelValuesView), args.Error(1)
}

func (m *MockCalculatorService) SaveModelValues(ctx context.Context, caller *models.User, modelID uuid.UUID, values map[string]string) (*ModelValuesView, error) {
	args := m.Called(ctx, caller, modelID, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ModelValuesView), args.Error(1)
}

func (m *MockCalculatorService) History(ctx context.Context, caller *models.User, filter models.HistoryFilter) ([]*models.HistoryRecord, error) {
	args := m.Called(ctx, caller, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoryRecord), args.Error(1)
}

// MockFreezeService is a mock implementation of FreezeService
type MockFreezeService struct {
	mock.Mock
}

func (m *MockFreezeService) RunEarlyFreeze(ctx context.Context, now time.Time, force bool) (*FreezeResult, error) {
	args := m.Called(ctx, now, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FreezeResult), args.Error(1)
}

func (m *MockFreezeService) RunCustomFreeze(ctx context.Context, name string, now time.Time, force bool) (*FreezeResult, error) {
	args := m.Called(ctx, name, now, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FreezeResult), args.Error(1)
}

func (m *MockFreezeService) FrozenPlatforms(ctx context.Context, caller *models.User, modelID *uuid.UUID) ([]*models.FrozenPlatformRecord, error) {
	args := m.Called(ctx, caller, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FrozenPlatformRecord), args.Error(1)
}

func (m *MockFreezeService) Unfreeze(ctx context.Context, caller *models.User, modelID *uuid.UUID, platformIDs []string) (int64, error) {
	args := m.Called(ctx, caller, modelID, platformIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFreezeService) Status(ctx context.Context, period models.Period) (*PeriodState, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PeriodState), args.Error(1)
}

func (m *MockFreezeService) CurrentPeriod() models.Period {
	args := m.Called()
	return args.Get(0).(models.Period)
}

// MockClosureService is a mock implementation of ClosureService
type MockClosureService struct {
	mock.Mock
}

func (m *MockClosureService) ClosePeriod(ctx context.Context, period models.Period) (*ClosureResult, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClosureResult), args.Error(1)
}

func (m *MockClosureService) CloseDue(ctx context.Context, now time.Time) (*ClosureResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClosureResult), args.Error(1)
}

func (m *MockClosureService) ForceReset(ctx context.Context, caller *models.User, period models.Period) (*ClosureResult, error) {
	args := m.Called(ctx, caller, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClosureResult), args.Error(1)
}

func (m *MockClosureService) BackfillRates(ctx context.Context) (*BackfillResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BackfillResult), args.Error(1)
}
