package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"earnings/database"
	"earnings/events"
	"earnings/service"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                 *database.DB
	tx                 pgx.Tx
	ctx                context.Context
	transactionalBus   *events.TransactionalBus
	userRepo           service.UserRepository
	rateRepo           service.RateRepository
	platformRepo       service.PlatformRepository
	payoutConfigRepo   service.PayoutConfigRepository
	modelValueRepo     service.ModelValueRepository
	historyRepo        service.HistoryRepository
	frozenPlatformRepo service.FrozenPlatformRepository
	closureStatusRepo  service.ClosureStatusRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepositoryWithTx(tx)
	u.rateRepo = newRateRepositoryWithTx(tx)
	u.platformRepo = newPlatformRepositoryWithTx(tx)
	u.payoutConfigRepo = newPayoutConfigRepositoryWithTx(tx)
	u.modelValueRepo = newModelValueRepositoryWithTx(tx)
	u.historyRepo = newHistoryRepositoryWithTx(tx)
	u.frozenPlatformRepo = newFrozenPlatformRepositoryWithTx(tx)
	u.closureStatusRepo = newClosureStatusRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and then delivers the events published in it
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and drops its pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func notStarted() {
	panic("unit of work not started - call Begin() first")
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		notStarted()
	}
	return u.userRepo
}

// RateRepository returns the rate repository for this unit of work
func (u *unitOfWork) RateRepository() service.RateRepository {
	if u.rateRepo == nil {
		notStarted()
	}
	return u.rateRepo
}

// PlatformRepository returns the platform repository for this unit of work
func (u *unitOfWork) PlatformRepository() service.PlatformRepository {
	if u.platformRepo == nil {
		notStarted()
	}
	return u.platformRepo
}

// PayoutConfigRepository returns the payout config repository for this unit of work
func (u *unitOfWork) PayoutConfigRepository() service.PayoutConfigRepository {
	if u.payoutConfigRepo == nil {
		notStarted()
	}
	return u.payoutConfigRepo
}

// ModelValueRepository returns the model value repository for this unit of work
func (u *unitOfWork) ModelValueRepository() service.ModelValueRepository {
	if u.modelValueRepo == nil {
		notStarted()
	}
	return u.modelValueRepo
}

// HistoryRepository returns the history repository for this unit of work
func (u *unitOfWork) HistoryRepository() service.HistoryRepository {
	if u.historyRepo == nil {
		notStarted()
	}
	return u.historyRepo
}

// FrozenPlatformRepository returns the frozen platform repository for this unit of work
func (u *unitOfWork) FrozenPlatformRepository() service.FrozenPlatformRepository {
	if u.frozenPlatformRepo == nil {
		notStarted()
	}
	return u.frozenPlatformRepo
}

// ClosureStatusRepository returns the closure status repository for this unit of work
func (u *unitOfWork) ClosureStatusRepository() service.ClosureStatusRepository {
	if u.closureStatusRepo == nil {
		notStarted()
	}
	return u.closureStatusRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		notStarted()
	}
	return u.transactionalBus
}
