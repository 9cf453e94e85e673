package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"earnings/events"
	"earnings/models"
)

// ConfigView is a model's calculator configuration with the platform catalog
type ConfigView struct {
	Model               *models.User         `json:"model"`
	Config              *models.PayoutConfig `json:"config"`
	Platforms           []*models.Platform   `json:"platforms"`
	EffectivePercentage decimal.Decimal      `json:"effective_percentage"`
}

// ConfigUpdate is a request to replace a model's active configuration
type ConfigUpdate struct {
	ModelID            uuid.UUID
	GroupID            *uuid.UUID
	EnabledPlatforms   []string
	PercentageOverride *decimal.Decimal
	MinQuotaOverride   *decimal.Decimal
	GroupPercentage    *decimal.Decimal
	GroupMinQuota      *decimal.Decimal
}

// ModelSummary is one row of the models listing
type ModelSummary struct {
	Model  *models.User         `json:"model"`
	Config *models.PayoutConfig `json:"config"`
}

// AdminViewEntry is one configured model's current period in the admin view
type AdminViewEntry struct {
	Model     *models.User         `json:"model"`
	Config    *models.PayoutConfig `json:"config"`
	Breakdown *Breakdown           `json:"breakdown"`
	Frozen    []string             `json:"frozen_platforms"`
}

// AdminView is the current period of every visible configured model
type AdminView struct {
	Period  models.Period     `json:"period"`
	Entries []*AdminViewEntry `json:"models"`
	Totals  Totals            `json:"totals"`
}

// ModelValuesView is a model's current period working set
type ModelValuesView struct {
	ModelID         uuid.UUID            `json:"model_id"`
	Period          models.Period        `json:"period"`
	Values          []*models.ModelValue `json:"values"`
	Breakdown       *Breakdown           `json:"breakdown"`
	Frozen          []string             `json:"frozen_platforms"`
	PeriodClosed    bool                 `json:"period_closed"`
	AutosaveEnabled bool                 `json:"autosave_enabled"`
}

// calculatorService implements the CalculatorService interface
type calculatorService struct {
	uowFactory      UnitOfWorkFactory
	rateService     RateService
	calculator      *PayoutCalculator
	calendar        *Calendar
	autosaveEnabled bool
	now             func() time.Time
}

// NewCalculatorService creates a new calculator service
func NewCalculatorService(uowFactory UnitOfWorkFactory, rateService RateService, calculator *PayoutCalculator, calendar *Calendar, autosaveEnabled bool) CalculatorService {
	return &calculatorService{
		uowFactory:      uowFactory,
		rateService:     rateService,
		calculator:      calculator,
		calendar:        calendar,
		autosaveEnabled: autosaveEnabled,
		now:             time.Now,
	}
}

// ListPlatforms returns the active platform catalog
func (s *calculatorService) ListPlatforms(ctx context.Context) ([]*models.Platform, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.PlatformRepository().GetAll(ctx, false)
}

// GetConfig returns the active configuration of a model
func (s *calculatorService) GetConfig(ctx context.Context, caller *models.User, modelID uuid.UUID) (*ConfigView, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	model, err := getModel(ctx, uow, modelID)
	if err != nil {
		return nil, err
	}
	if err := RequireModelAccess(caller, model); err != nil {
		return nil, err
	}

	cfg, err := uow.PayoutConfigRepository().GetActive(ctx, modelID)
	if err != nil {
		return nil, err
	}

	platforms, err := uow.PlatformRepository().GetAll(ctx, false)
	if err != nil {
		return nil, err
	}

	return &ConfigView{
		Model:               model,
		Config:              cfg,
		Platforms:           platforms,
		EffectivePercentage: s.calculator.Percentage("", cfg),
	}, nil
}

// UpdateConfig deactivates the model's current configuration and appends
// the new one in a single transaction
func (s *calculatorService) UpdateConfig(ctx context.Context, caller *models.User, req ConfigUpdate) (*models.PayoutConfig, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return nil, err
	}
	if err := validateConfigUpdate(req); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	model, err := getModel(ctx, uow, req.ModelID)
	if err != nil {
		return nil, err
	}
	if err := RequireModelAccess(caller, model); err != nil {
		return nil, err
	}
	if req.GroupID != nil && !model.InGroup(*req.GroupID) {
		return nil, fmt.Errorf("%w: model is not in group %s", ErrValidation, *req.GroupID)
	}

	platforms, err := platformIndex(ctx, uow)
	if err != nil {
		return nil, err
	}
	for _, id := range req.EnabledPlatforms {
		if p, ok := platforms[id]; !ok || !p.Active {
			return nil, fmt.Errorf("%w: unknown or inactive platform %q", ErrValidation, id)
		}
	}

	if err := uow.PayoutConfigRepository().DeactivateForModel(ctx, model.ID); err != nil {
		return nil, err
	}

	cfg := &models.PayoutConfig{
		ModelID:            model.ID,
		AdminID:            caller.ID,
		GroupID:            req.GroupID,
		EnabledPlatforms:   dedupe(req.EnabledPlatforms),
		PercentageOverride: req.PercentageOverride,
		MinQuotaOverride:   req.MinQuotaOverride,
		GroupPercentage:    req.GroupPercentage,
		GroupMinQuota:      req.GroupMinQuota,
		Active:             true,
	}
	if err := uow.PayoutConfigRepository().Create(ctx, cfg); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.PayoutConfigUpdatedEvent{
		ModelID:  model.ID,
		AdminID:  caller.ID,
		ConfigID: cfg.ID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit config update: %w", err)
	}

	log.WithFields(log.Fields{
		"modelID":   model.ID,
		"adminID":   caller.ID,
		"configID":  cfg.ID,
		"platforms": len(cfg.EnabledPlatforms),
	}).Info("Calculator configuration updated")

	return cfg, nil
}

func validateConfigUpdate(req ConfigUpdate) error {
	if req.ModelID == uuid.Nil {
		return fmt.Errorf("%w: model_id is required", ErrValidation)
	}
	if len(req.EnabledPlatforms) == 0 {
		return fmt.Errorf("%w: enabled_platforms is required", ErrValidation)
	}
	for name, pct := range map[string]*decimal.Decimal{
		"percentage_override": req.PercentageOverride,
		"group_percentage":    req.GroupPercentage,
	} {
		if pct != nil && (pct.IsNegative() || pct.GreaterThan(hundred)) {
			return fmt.Errorf("%w: %s must be between 0 and 100", ErrValidation, name)
		}
	}
	for name, quota := range map[string]*decimal.Decimal{
		"min_quota_override": req.MinQuotaOverride,
		"group_min_quota":    req.GroupMinQuota,
	} {
		if quota != nil && quota.IsNegative() {
			return fmt.Errorf("%w: %s cannot be negative", ErrValidation, name)
		}
	}
	return nil
}

// ListModels returns the models visible to an admin with their active configs
func (s *calculatorService) ListModels(ctx context.Context, caller *models.User) ([]*ModelSummary, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	modelUsers, err := visibleModels(ctx, uow, caller)
	if err != nil {
		return nil, err
	}

	configs, err := activeConfigIndex(ctx, uow)
	if err != nil {
		return nil, err
	}

	summaries := make([]*ModelSummary, 0, len(modelUsers))
	for _, model := range modelUsers {
		summaries = append(summaries, &ModelSummary{Model: model, Config: configs[model.ID]})
	}
	return summaries, nil
}

// AdminView computes the current period of every visible configured model
func (s *calculatorService) AdminView(ctx context.Context, caller *models.User, modelID *uuid.UUID) (*AdminView, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	modelUsers, err := visibleModels(ctx, uow, caller)
	if err != nil {
		return nil, err
	}
	configs, err := activeConfigIndex(ctx, uow)
	if err != nil {
		return nil, err
	}
	platforms, err := platformIndex(ctx, uow)
	if err != nil {
		return nil, err
	}

	period := s.calendar.CurrentPeriod(s.now())
	frozen, err := uow.FrozenPlatformRepository().List(ctx, period.Date, modelID)
	if err != nil {
		return nil, err
	}
	frozenByModel := make(map[uuid.UUID][]string)
	for _, rec := range frozen {
		frozenByModel[rec.ModelID] = append(frozenByModel[rec.ModelID], rec.PlatformID)
	}

	view := &AdminView{Period: period, Entries: []*AdminViewEntry{}}
	rates := newRateCache(ctx, s.rateService)

	for _, model := range modelUsers {
		if modelID != nil && model.ID != *modelID {
			continue
		}
		cfg := configs[model.ID]
		if cfg == nil {
			continue
		}

		values, err := uow.ModelValueRepository().GetByModelAndPeriod(ctx, model.ID, period.Date)
		if err != nil {
			return nil, err
		}
		breakdown, err := s.calculator.Breakdown(values, platforms, cfg, rates.get(cfg.GroupID))
		if err != nil {
			return nil, fmt.Errorf("failed to compute model %s: %w", model.ID, err)
		}

		view.Entries = append(view.Entries, &AdminViewEntry{
			Model:     model,
			Config:    cfg,
			Breakdown: breakdown,
			Frozen:    nonNil(frozenByModel[model.ID]),
		})
		view.Totals.GrossUSD = view.Totals.GrossUSD.Add(breakdown.Totals.GrossUSD)
		view.Totals.USDModel = view.Totals.USDModel.Add(breakdown.Totals.USDModel)
		view.Totals.COPModel = view.Totals.COPModel.Add(breakdown.Totals.COPModel)
	}

	if modelID != nil && len(view.Entries) == 0 {
		return nil, fmt.Errorf("%w: no configured model %s in your groups", ErrNotFound, *modelID)
	}

	return view, nil
}

// GetModelValues returns a model's current period values with the computed payout
func (s *calculatorService) GetModelValues(ctx context.Context, caller *models.User, modelID uuid.UUID) (*ModelValuesView, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	model, err := getModel(ctx, uow, modelID)
	if err != nil {
		return nil, err
	}
	if err := RequireModelAccess(caller, model); err != nil {
		return nil, err
	}

	return s.modelValuesView(ctx, uow, model)
}

// SaveModelValues upserts raw values for the current period. Values for
// frozen platforms, closing or closed periods or platforms outside the model's
// configuration are rejected and nothing is written.
func (s *calculatorService) SaveModelValues(ctx context.Context, caller *models.User, modelID uuid.UUID, values map[string]string) (*ModelValuesView, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: values are required", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	model, err := getModel(ctx, uow, modelID)
	if err != nil {
		return nil, err
	}
	if err := RequireModelAccess(caller, model); err != nil {
		return nil, err
	}

	cfg, err := uow.PayoutConfigRepository().GetActive(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: model has no active calculator configuration", ErrValidation)
	}

	period := s.calendar.CurrentPeriod(s.now())
	status, err := uow.ClosureStatusRepository().GetForShare(ctx, period)
	if err != nil {
		return nil, err
	}
	if status.IsClosed() {
		return nil, fmt.Errorf("%w: period %s is closed", ErrConflict, period)
	}
	if status.IsClosing() {
		return nil, fmt.Errorf("%w: period %s is being closed", ErrConflict, period)
	}

	frozen, err := frozenSet(ctx, uow, period, modelID)
	if err != nil {
		return nil, err
	}

	platformIDs := make([]string, 0, len(values))
	for id := range values {
		platformIDs = append(platformIDs, id)
	}
	sort.Strings(platformIDs)

	for _, id := range platformIDs {
		amount, err := decimal.NewFromString(values[id])
		if err != nil || amount.IsNegative() {
			return nil, fmt.Errorf("%w: value for %s must be a non-negative number", ErrValidation, id)
		}
		if !cfg.PlatformEnabled(id) {
			return nil, fmt.Errorf("%w: platform %s is not enabled for this model", ErrValidation, id)
		}
		if frozen[id] {
			return nil, fmt.Errorf("%w: platform %s is frozen for period %s", ErrConflict, id, period)
		}

		err = uow.ModelValueRepository().Upsert(ctx, &models.ModelValue{
			ModelID:    modelID,
			PlatformID: id,
			PeriodDate: period.Date,
			Value:      amount.Round(2),
		})
		if err != nil {
			return nil, err
		}
	}

	view, err := s.modelValuesView(ctx, uow, model)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit model values: %w", err)
	}

	log.WithFields(log.Fields{
		"modelID":  modelID,
		"callerID": caller.ID,
		"period":   period.String(),
		"values":   len(platformIDs),
	}).Debug("Model values saved")

	return view, nil
}

func (s *calculatorService) modelValuesView(ctx context.Context, uow UnitOfWork, model *models.User) (*ModelValuesView, error) {
	period := s.calendar.CurrentPeriod(s.now())

	cfg, err := uow.PayoutConfigRepository().GetActive(ctx, model.ID)
	if err != nil {
		return nil, err
	}
	values, err := uow.ModelValueRepository().GetByModelAndPeriod(ctx, model.ID, period.Date)
	if err != nil {
		return nil, err
	}
	platforms, err := platformIndex(ctx, uow)
	if err != nil {
		return nil, err
	}
	frozen, err := frozenSet(ctx, uow, period, model.ID)
	if err != nil {
		return nil, err
	}
	status, err := uow.ClosureStatusRepository().Get(ctx, period)
	if err != nil {
		return nil, err
	}

	var groupID *uuid.UUID
	if cfg != nil {
		groupID = cfg.GroupID
	}
	breakdown, err := s.calculator.Breakdown(values, platforms, cfg, s.rateService.ResolveRates(ctx, groupID))
	if err != nil {
		return nil, err
	}

	frozenIDs := make([]string, 0, len(frozen))
	for id := range frozen {
		frozenIDs = append(frozenIDs, id)
	}
	sort.Strings(frozenIDs)

	if values == nil {
		values = []*models.ModelValue{}
	}

	return &ModelValuesView{
		ModelID:         model.ID,
		Period:          period,
		Values:          values,
		Breakdown:       breakdown,
		Frozen:          frozenIDs,
		PeriodClosed:    status.IsClosed(),
		AutosaveEnabled: s.autosaveEnabled,
	}, nil
}

// History returns archived records. Models only see their own; admins must
// name a model unless they are super admins.
func (s *calculatorService) History(ctx context.Context, caller *models.User, filter models.HistoryFilter) ([]*models.HistoryRecord, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	switch {
	case caller.Role == models.RoleModel && filter.ModelID == nil:
		id := caller.ID
		filter.ModelID = &id
	case filter.ModelID == nil && caller.Role != models.RoleSuperAdmin:
		return nil, fmt.Errorf("%w: modelId is required", ErrValidation)
	}

	if filter.ModelID != nil {
		model, err := getModel(ctx, uow, *filter.ModelID)
		if err != nil {
			return nil, err
		}
		if err := RequireModelAccess(caller, model); err != nil {
			return nil, err
		}
	}

	records, err := uow.HistoryRepository().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	return records, nil
}

func getModel(ctx context.Context, uow UnitOfWork, modelID uuid.UUID) (*models.User, error) {
	model, err := uow.UserRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if model == nil || model.Role != models.RoleModel {
		return nil, fmt.Errorf("%w: model %s", ErrNotFound, modelID)
	}
	return model, nil
}

func visibleModels(ctx context.Context, uow UnitOfWork, caller *models.User) ([]*models.User, error) {
	var groups []uuid.UUID
	if caller.Role != models.RoleSuperAdmin {
		if len(caller.GroupIDs) == 0 {
			return []*models.User{}, nil
		}
		groups = caller.GroupIDs
	}
	return uow.UserRepository().ListModels(ctx, groups)
}

func activeConfigIndex(ctx context.Context, uow UnitOfWork) (map[uuid.UUID]*models.PayoutConfig, error) {
	configs, err := uow.PayoutConfigRepository().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[uuid.UUID]*models.PayoutConfig, len(configs))
	for _, cfg := range configs {
		index[cfg.ModelID] = cfg
	}
	return index, nil
}

// platformIndex includes inactive platforms so values entered before a
// platform was retired still convert
func platformIndex(ctx context.Context, uow UnitOfWork) (map[string]*models.Platform, error) {
	platforms, err := uow.PlatformRepository().GetAll(ctx, true)
	if err != nil {
		return nil, err
	}
	index := make(map[string]*models.Platform, len(platforms))
	for _, p := range platforms {
		index[p.ID] = p
	}
	return index, nil
}

func frozenSet(ctx context.Context, uow UnitOfWork, period models.Period, modelID uuid.UUID) (map[string]bool, error) {
	records, err := uow.FrozenPlatformRepository().List(ctx, period.Date, &modelID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(records))
	for _, rec := range records {
		set[rec.PlatformID] = true
	}
	return set, nil
}

// rateCache resolves rates once per group within a single request or job run
type rateCache struct {
	ctx     context.Context
	service RateService
	byGroup map[uuid.UUID]*ResolvedRates
	global  *ResolvedRates
}

func newRateCache(ctx context.Context, service RateService) *rateCache {
	return &rateCache{ctx: ctx, service: service, byGroup: make(map[uuid.UUID]*ResolvedRates)}
}

func (c *rateCache) get(groupID *uuid.UUID) *ResolvedRates {
	if groupID == nil {
		if c.global == nil {
			c.global = c.service.ResolveRates(c.ctx, nil)
		}
		return c.global
	}
	if rates, ok := c.byGroup[*groupID]; ok {
		return rates
	}
	rates := c.service.ResolveRates(c.ctx, groupID)
	c.byGroup[*groupID] = rates
	return rates
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
