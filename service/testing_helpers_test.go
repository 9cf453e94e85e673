package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
)

// testMocks wires one MockUnitOfWork holding every repository mock. The
// factory hands out the same unit of work for every Create call.
type testMocks struct {
	factory       *MockUnitOfWorkFactory
	uow           *MockUnitOfWork
	users         *MockUserRepository
	rates         *MockRateRepository
	platforms     *MockPlatformRepository
	configs       *MockPayoutConfigRepository
	values        *MockModelValueRepository
	history       *MockHistoryRepository
	frozen        *MockFrozenPlatformRepository
	closureStatus *MockClosureStatusRepository
	events        *MockEventPublisher
}

func newTestMocks(ctx context.Context) *testMocks {
	m := &testMocks{
		factory:       new(MockUnitOfWorkFactory),
		uow:           new(MockUnitOfWork),
		users:         new(MockUserRepository),
		rates:         new(MockRateRepository),
		platforms:     new(MockPlatformRepository),
		configs:       new(MockPayoutConfigRepository),
		values:        new(MockModelValueRepository),
		history:       new(MockHistoryRepository),
		frozen:        new(MockFrozenPlatformRepository),
		closureStatus: new(MockClosureStatusRepository),
		events:        new(MockEventPublisher),
	}

	m.uow.SetRepositories(MockRepositories{
		Users:          m.users,
		Rates:          m.rates,
		Platforms:      m.platforms,
		PayoutConfigs:  m.configs,
		ModelValues:    m.values,
		History:        m.history,
		FrozenPlatform: m.frozen,
		ClosureStatus:  m.closureStatus,
		Events:         m.events,
	})

	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)

	return m
}

func (m *testMocks) expectCommit() {
	m.uow.On("Commit").Return(nil)
}

func (m *testMocks) assertExpectations(t *testing.T) {
	t.Helper()
	mock.AssertExpectationsForObjects(t,
		m.factory, m.uow, m.users, m.rates, m.platforms, m.configs,
		m.values, m.history, m.frozen, m.closureStatus, m.events,
	)
}
