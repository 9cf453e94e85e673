package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"earnings/events"
	"earnings/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user with their group memberships
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// ListModels returns active models, limited to the given groups when non-empty
	ListModels(ctx context.Context, groupIDs []uuid.UUID) ([]*models.User, error)
}

// RateRepository defines the interface for conversion rate data access
type RateRepository interface {
	// GetCurrent returns every active rate with an open validity window
	GetCurrent(ctx context.Context) ([]*models.Rate, error)

	// GetEffectiveAt returns the rates whose validity window contains at
	GetEffectiveAt(ctx context.Context, at time.Time) ([]*models.Rate, error)

	// CloseCurrent ends the validity window of the current rate for (kind, scope)
	CloseCurrent(ctx context.Context, kind models.RateKind, scope string, at time.Time) (int64, error)

	// Create inserts a new rate row
	Create(ctx context.Context, rate *models.Rate) error
}

// PlatformRepository defines the interface for platform reference data
type PlatformRepository interface {
	GetAll(ctx context.Context, includeInactive bool) ([]*models.Platform, error)
}

// PayoutConfigRepository defines the interface for versioned calculator configs
type PayoutConfigRepository interface {
	// GetActive returns the active config of a model, or nil
	GetActive(ctx context.Context, modelID uuid.UUID) (*models.PayoutConfig, error)

	// ListActive returns every active config
	ListActive(ctx context.Context) ([]*models.PayoutConfig, error)

	// DeactivateForModel marks the model's active config as superseded
	DeactivateForModel(ctx context.Context, modelID uuid.UUID) error

	// Create inserts a new config row
	Create(ctx context.Context, cfg *models.PayoutConfig) error
}

// ModelValueRepository defines the interface for current period values
type ModelValueRepository interface {
	GetByModelAndPeriod(ctx context.Context, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error)

	// LockByModelAndPeriod reads the values and locks them until the transaction ends
	LockByModelAndPeriod(ctx context.Context, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error)

	Upsert(ctx context.Context, value *models.ModelValue) error

	// DeleteByIDs removes only the listed values of the model
	DeleteByIDs(ctx context.Context, modelID uuid.UUID, ids []int64) (int64, error)
}

// HistoryRepository defines the interface for archived period values
type HistoryRepository interface {
	// CreateBatch archives records, skipping ones already archived
	CreateBatch(ctx context.Context, records []*models.HistoryRecord) (int64, error)

	// List returns archived records matching the filter
	List(ctx context.Context, filter models.HistoryFilter) ([]*models.HistoryRecord, error)

	// ListMissingRates returns records with a null rate or amount column, in id order after afterID
	ListMissingRates(ctx context.Context, afterID int64, limit int) ([]*models.HistoryRecord, error)

	// FillMissing sets rate and amount columns that are still null
	FillMissing(ctx context.Context, rec *models.HistoryRecord) error
}

// FrozenPlatformRepository defines the interface for platform locks
type FrozenPlatformRepository interface {
	Freeze(ctx context.Context, periodDate time.Time, modelID uuid.UUID, platformIDs []string) (int64, error)
	List(ctx context.Context, periodDate time.Time, modelID *uuid.UUID) ([]*models.FrozenPlatformRecord, error)
	Delete(ctx context.Context, periodDate time.Time, modelID *uuid.UUID, platformIDs []string) (int64, error)
}

// ClosureStatusRepository defines the interface for closure run tracking
type ClosureStatusRepository interface {
	Get(ctx context.Context, period models.Period) (*models.ClosureStatus, error)
	GetForUpdate(ctx context.Context, period models.Period) (*models.ClosureStatus, error)
	GetForShare(ctx context.Context, period models.Period) (*models.ClosureStatus, error)
	Upsert(ctx context.Context, status *models.ClosureStatus) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	RateRepository() RateRepository
	PlatformRepository() PlatformRepository
	PayoutConfigRepository() PayoutConfigRepository
	ModelValueRepository() ModelValueRepository
	HistoryRepository() HistoryRepository
	FrozenPlatformRepository() FrozenPlatformRepository
	ClosureStatusRepository() ClosureStatusRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// RateService resolves and activates conversion rates
type RateService interface {
	// ResolveRates returns the effective rates for a group. It never fails:
	// missing rows and read errors degrade to defaults.
	ResolveRates(ctx context.Context, groupID *uuid.UUID) *ResolvedRates

	// RatesAt returns the rates that were effective at a past instant
	RatesAt(ctx context.Context, at time.Time, groupID *uuid.UUID) *ResolvedRates

	// ListCurrent returns every current rate row
	ListCurrent(ctx context.Context) ([]*models.Rate, error)

	// ActivateRate supersedes the current rate for (kind, scope)
	ActivateRate(ctx context.Context, caller *models.User, kind models.RateKind, scope string, value string) (*models.Rate, error)
}

// CalculatorService covers configuration and value entry
type CalculatorService interface {
	ListPlatforms(ctx context.Context) ([]*models.Platform, error)
	GetConfig(ctx context.Context, caller *models.User, modelID uuid.UUID) (*ConfigView, error)
	UpdateConfig(ctx context.Context, caller *models.User, req ConfigUpdate) (*models.PayoutConfig, error)
	ListModels(ctx context.Context, caller *models.User) ([]*ModelSummary, error)
	AdminView(ctx context.Context, caller *models.User, modelID *uuid.UUID) (*AdminView, error)
	GetModelValues(ctx context.Context, caller *models.User, modelID uuid.UUID) (*ModelValuesView, error)
	SaveModelValues(ctx context.Context, caller *models.User, modelID uuid.UUID, values map[string]string) (*ModelValuesView, error)
	History(ctx context.Context, caller *models.User, filter models.HistoryFilter) ([]*models.HistoryRecord, error)
}

// FreezeService drives the open -> early_frozen transitions
type FreezeService interface {
	// RunEarlyFreeze applies the early freeze to the period containing now.
	// Unless force is set it only acts on period closing days.
	RunEarlyFreeze(ctx context.Context, now time.Time, force bool) (*FreezeResult, error)

	// RunCustomFreeze applies a named per-platform freeze rule
	RunCustomFreeze(ctx context.Context, name string, now time.Time, force bool) (*FreezeResult, error)

	// FrozenPlatforms lists the locks of the current period
	FrozenPlatforms(ctx context.Context, caller *models.User, modelID *uuid.UUID) ([]*models.FrozenPlatformRecord, error)

	// Unfreeze removes locks of the current period
	Unfreeze(ctx context.Context, caller *models.User, modelID *uuid.UUID, platformIDs []string) (int64, error)

	// Status returns the phase of a period
	Status(ctx context.Context, period models.Period) (*PeriodState, error)

	// CurrentPeriod returns the period containing the present instant
	CurrentPeriod() models.Period
}

// ClosureService archives and resets periods
type ClosureService interface {
	// ClosePeriod archives and resets every configured model for the period
	ClosePeriod(ctx context.Context, period models.Period) (*ClosureResult, error)

	// CloseDue closes the previous period when now falls on a period opening day
	CloseDue(ctx context.Context, now time.Time) (*ClosureResult, error)

	// ForceReset closes a period on an admin's request
	ForceReset(ctx context.Context, caller *models.User, period models.Period) (*ClosureResult, error)

	// BackfillRates fills missing rate snapshots of archived records
	BackfillRates(ctx context.Context) (*BackfillResult, error)
}
