package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"earnings/events"
	"earnings/models"
)

// RateSource names the tier a resolved rate came from
type RateSource string

const (
	RateSourceGroup    RateSource = "group"
	RateSourceGlobal   RateSource = "global"
	RateSourceFallback RateSource = "fallback"
	RateSourceDefault  RateSource = "default"
)

// DefaultRates apply when no rate row exists for a kind
var DefaultRates = models.RateSet{
	USDCOP: decimal.NewFromInt(3900),
	EURUSD: decimal.RequireFromString("1.01"),
	GBPUSD: decimal.RequireFromString("1.20"),
}

// ResolvedRates is a rate set plus the tier each kind was taken from
type ResolvedRates struct {
	Rates   models.RateSet                 `json:"rates"`
	Sources map[models.RateKind]RateSource `json:"sources"`
}

// UsesDefaults reports whether any kind fell back to a hard-coded default
func (r *ResolvedRates) UsesDefaults() bool {
	for _, source := range r.Sources {
		if source == RateSourceDefault {
			return true
		}
	}
	return false
}

// resolveRates picks one row per kind: the group's rate, else the global
// rate, else the first row of that kind, else the default.
func resolveRates(rows []*models.Rate, groupID *uuid.UUID) *ResolvedRates {
	resolved := &ResolvedRates{Sources: make(map[models.RateKind]RateSource, len(models.RateKinds))}

	groupScope := ""
	if groupID != nil {
		groupScope = models.GroupScope(*groupID)
	}

	for _, kind := range models.RateKinds {
		var group, global, first *models.Rate
		for _, row := range rows {
			if row.Kind != kind {
				continue
			}
			if first == nil {
				first = row
			}
			if groupScope != "" && row.Scope == groupScope && group == nil {
				group = row
			}
			if row.Scope == models.GlobalScope && global == nil {
				global = row
			}
		}

		switch {
		case group != nil:
			resolved.Rates.Set(kind, group.Value)
			resolved.Sources[kind] = RateSourceGroup
		case global != nil:
			resolved.Rates.Set(kind, global.Value)
			resolved.Sources[kind] = RateSourceGlobal
		case first != nil:
			resolved.Rates.Set(kind, first.Value)
			resolved.Sources[kind] = RateSourceFallback
		default:
			resolved.Rates.Set(kind, DefaultRates.Value(kind))
			resolved.Sources[kind] = RateSourceDefault
		}
	}

	return resolved
}

// rateService implements the RateService interface
type rateService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewRateService creates a new rate service
func NewRateService(uowFactory UnitOfWorkFactory) RateService {
	return &rateService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// ResolveRates returns the effective rates for a group
func (s *rateService) ResolveRates(ctx context.Context, groupID *uuid.UUID) *ResolvedRates {
	rows, err := s.readRates(ctx, func(repo RateRepository) ([]*models.Rate, error) {
		return repo.GetCurrent(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to read rates, using defaults")
	}

	resolved := resolveRates(rows, groupID)
	logDefaults(resolved, groupID)
	return resolved
}

// RatesAt returns the rates that were effective at a past instant
func (s *rateService) RatesAt(ctx context.Context, at time.Time, groupID *uuid.UUID) *ResolvedRates {
	rows, err := s.readRates(ctx, func(repo RateRepository) ([]*models.Rate, error) {
		return repo.GetEffectiveAt(ctx, at)
	})
	if err != nil {
		log.WithError(err).WithField("at", at).Error("Failed to read historical rates, using defaults")
	}

	resolved := resolveRates(rows, groupID)
	logDefaults(resolved, groupID)
	return resolved
}

func (s *rateService) readRates(ctx context.Context, read func(RateRepository) ([]*models.Rate, error)) ([]*models.Rate, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return read(uow.RateRepository())
}

func logDefaults(resolved *ResolvedRates, groupID *uuid.UUID) {
	for kind, source := range resolved.Sources {
		if source != RateSourceDefault {
			continue
		}
		log.WithFields(log.Fields{
			"kind":    kind,
			"groupID": groupID,
			"value":   resolved.Rates.Value(kind).String(),
		}).Warn("No rate configured, using hard-coded default")
	}
}

// ListCurrent returns every current rate row
func (s *rateService) ListCurrent(ctx context.Context) ([]*models.Rate, error) {
	rows, err := s.readRates(ctx, func(repo RateRepository) ([]*models.Rate, error) {
		return repo.GetCurrent(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return rows, nil
}

// ActivateRate closes out the current rate for (kind, scope) and inserts the
// new one in a single transaction. Group rates may be set by an admin of that
// group; global rates need a super admin.
func (s *rateService) ActivateRate(ctx context.Context, caller *models.User, kind models.RateKind, scope string, value string) (*models.Rate, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown rate kind %q", ErrValidation, kind)
	}
	if scope == "" {
		scope = models.GlobalScope
	}
	if !models.IsValidScope(scope) {
		return nil, fmt.Errorf("%w: scope must be %q or \"group:<id>\"", ErrValidation, models.GlobalScope)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: rate value must be a positive number", ErrValidation)
	}

	if caller.Role != models.RoleSuperAdmin {
		if scope == models.GlobalScope {
			return nil, fmt.Errorf("%w: only super admins can set global rates", ErrForbidden)
		}
		groupID, _ := models.ParseGroupScope(scope)
		if !caller.InGroup(groupID) {
			return nil, fmt.Errorf("%w: group %s is outside your groups", ErrForbidden, groupID)
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.now().UTC()
	closed, err := uow.RateRepository().CloseCurrent(ctx, kind, scope, now)
	if err != nil {
		return nil, err
	}

	callerID := caller.ID
	rate := &models.Rate{
		Kind:      kind,
		Value:     amount,
		Scope:     scope,
		ValidFrom: now,
		Active:    true,
		CreatedBy: &callerID,
	}
	if err := uow.RateRepository().Create(ctx, rate); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.RateActivatedEvent{Rate: *rate, ActorID: caller.ID})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rate activation: %w", err)
	}

	log.WithFields(log.Fields{
		"kind":       kind,
		"scope":      scope,
		"value":      amount.String(),
		"superseded": closed,
		"actor":      caller.ID,
	}).Info("Rate activated")

	return rate, nil
}
