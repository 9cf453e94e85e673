package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"earnings/events"
	"earnings/models"
	"earnings/rules"
)

// PeriodPhase is the edit state of a period as seen by clients
type PeriodPhase string

const (
	PhaseOpen        PeriodPhase = "open"
	PhaseEarlyFrozen PeriodPhase = "early_frozen"
	PhaseClosing     PeriodPhase = "closing"
	PhaseClosed      PeriodPhase = "period_closed"
	PhaseFailed      PeriodPhase = "failed"
)

// PeriodState is a period's phase plus its closure record, if any
type PeriodState struct {
	Period  models.Period         `json:"period"`
	Phase   PeriodPhase           `json:"phase"`
	Closure *models.ClosureStatus `json:"closure"`
}

// ModelFreezeResult is the outcome of a freeze sweep for one model
type ModelFreezeResult struct {
	ModelID uuid.UUID `json:"model_id"`
	Success bool      `json:"success"`
	Frozen  int64     `json:"frozen"`
	Error   string    `json:"error,omitempty"`
}

// FreezeResult summarizes a freeze sweep
type FreezeResult struct {
	Period    models.Period        `json:"period"`
	Rule      string               `json:"rule"`
	Platforms []string             `json:"platforms"`
	Skipped   bool                 `json:"skipped"`
	Reason    string               `json:"reason,omitempty"`
	Frozen    int64                `json:"frozen"`
	Failures  int                  `json:"failures"`
	Results   []*ModelFreezeResult `json:"results"`
}

// freezeService implements the FreezeService interface
type freezeService struct {
	uowFactory UnitOfWorkFactory
	rules      *rules.Table
	calendar   *Calendar
	now        func() time.Time
}

// NewFreezeService creates a new freeze service
func NewFreezeService(uowFactory UnitOfWorkFactory, table *rules.Table, calendar *Calendar) FreezeService {
	return &freezeService{
		uowFactory: uowFactory,
		rules:      table,
		calendar:   calendar,
		now:        time.Now,
	}
}

// RunEarlyFreeze locks the early freeze platforms for every configured model
func (s *freezeService) RunEarlyFreeze(ctx context.Context, now time.Time, force bool) (*FreezeResult, error) {
	return s.runFreeze(ctx, s.rules.EarlyFreeze, now, force)
}

// RunCustomFreeze locks the platforms of a named freeze rule
func (s *freezeService) RunCustomFreeze(ctx context.Context, name string, now time.Time, force bool) (*FreezeResult, error) {
	rule, ok := s.rules.CustomFreeze(name)
	if !ok {
		return nil, fmt.Errorf("%w: freeze rule %q", ErrNotFound, name)
	}
	return s.runFreeze(ctx, rule, now, force)
}

func (s *freezeService) runFreeze(ctx context.Context, rule rules.FreezeRule, now time.Time, force bool) (*FreezeResult, error) {
	period := s.calendar.CurrentPeriod(now)
	result := &FreezeResult{
		Period:    period,
		Rule:      rule.Name,
		Platforms: nonNil(rule.Platforms),
		Results:   []*ModelFreezeResult{},
	}

	logger := log.WithFields(log.Fields{
		"rule":   rule.Name,
		"period": period.String(),
		"force":  force,
	})

	if len(rule.Platforms) == 0 {
		return skip(result, "rule has no platforms"), nil
	}
	if !force && !s.calendar.IsClosingDay(now) {
		logger.Debug("Not a period closing day, skipping freeze")
		return skip(result, "not a period closing day"), nil
	}

	configs, reason, err := s.beginFreeze(ctx, period, rule, force)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		logger.WithField("reason", reason).Info("Skipping freeze")
		return skip(result, reason), nil
	}

	logger.WithField("models", len(configs)).Info("Starting freeze sweep")

	for _, cfg := range configs {
		modelResult := &ModelFreezeResult{ModelID: cfg.ModelID}
		frozen, err := s.freezeModel(ctx, period, cfg.ModelID, rule.Platforms)
		if err != nil {
			logger.WithError(err).WithField("modelID", cfg.ModelID).Error("Failed to freeze platforms for model")
			modelResult.Error = err.Error()
			result.Failures++
		} else {
			modelResult.Success = true
			modelResult.Frozen = frozen
			result.Frozen += frozen
		}
		result.Results = append(result.Results, modelResult)
	}

	if err := s.finishFreeze(ctx, period, rule.Name, result); err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"models":   len(configs),
		"frozen":   result.Frozen,
		"failures": result.Failures,
	}).Info("Freeze sweep completed")

	return result, nil
}

// beginFreeze checks the closure record and returns the models to sweep, or
// a reason to skip
func (s *freezeService) beginFreeze(ctx context.Context, period models.Period, rule rules.FreezeRule, force bool) ([]*models.PayoutConfig, string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	status, err := uow.ClosureStatusRepository().GetForUpdate(ctx, period)
	if err != nil {
		return nil, "", err
	}
	if status != nil && status.Status.AtLeast(models.ClosureStateClosingCalculators) {
		return nil, fmt.Sprintf("period is already %s", status.Status), nil
	}
	if !force && freezeCompleted(status, rule.Name) {
		return nil, "freeze already completed for this period", nil
	}

	// Locks are only written for catalog platforms
	platforms, err := platformIndex(ctx, uow)
	if err != nil {
		return nil, "", err
	}
	if missing := missingPlatforms(rule.Platforms, platforms); len(missing) > 0 {
		return nil, "", fmt.Errorf("%w: freeze rule %s names platforms missing from the catalog: %s",
			ErrValidation, rule.Name, strings.Join(missing, ", "))
	}

	if status == nil {
		status = &models.ClosureStatus{
			PeriodDate: period.Date,
			PeriodType: period.Type,
			Status:     models.ClosureStateEarlyFreezing,
			Metadata:   map[string]interface{}{},
		}
		if err := uow.ClosureStatusRepository().Upsert(ctx, status); err != nil {
			return nil, "", err
		}
	}

	configs, err := uow.PayoutConfigRepository().ListActive(ctx)
	if err != nil {
		return nil, "", err
	}

	if err := uow.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit freeze start: %w", err)
	}
	return configs, "", nil
}

func (s *freezeService) freezeModel(ctx context.Context, period models.Period, modelID uuid.UUID, platforms []string) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	frozen, err := uow.FrozenPlatformRepository().Freeze(ctx, period.Date, modelID, platforms)
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit freeze: %w", err)
	}
	return frozen, nil
}

// finishFreeze records the sweep in the closure metadata and announces it
func (s *freezeService) finishFreeze(ctx context.Context, period models.Period, ruleName string, result *FreezeResult) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	status, err := uow.ClosureStatusRepository().GetForUpdate(ctx, period)
	if err != nil {
		return err
	}
	if status == nil {
		status = &models.ClosureStatus{
			PeriodDate: period.Date,
			PeriodType: period.Type,
			Status:     models.ClosureStateEarlyFreezing,
		}
	}
	if status.Metadata == nil {
		status.Metadata = map[string]interface{}{}
	}

	freezes, _ := status.Metadata["freezes"].(map[string]interface{})
	if freezes == nil {
		freezes = map[string]interface{}{}
	}
	freezes[ruleName] = map[string]interface{}{
		"completed_at": s.now().UTC().Format(time.RFC3339),
		"models":       len(result.Results),
		"frozen":       result.Frozen,
		"failures":     result.Failures,
	}
	status.Metadata["freezes"] = freezes

	if err := uow.ClosureStatusRepository().Upsert(ctx, status); err != nil {
		return err
	}

	uow.EventBus().Publish(events.PlatformsFrozenEvent{
		Period:    period,
		Rule:      ruleName,
		Platforms: result.Platforms,
		Models:    len(result.Results),
		Locks:     result.Frozen,
		Failures:  result.Failures,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit freeze summary: %w", err)
	}
	return nil
}

// freezeCompleted reports whether the rule already swept the period without failures
func freezeCompleted(status *models.ClosureStatus, ruleName string) bool {
	if status == nil || status.Metadata == nil {
		return false
	}
	freezes, ok := status.Metadata["freezes"].(map[string]interface{})
	if !ok {
		return false
	}
	entry, ok := freezes[ruleName].(map[string]interface{})
	if !ok {
		return false
	}
	switch failures := entry["failures"].(type) {
	case float64:
		return failures == 0
	case int:
		return failures == 0
	default:
		return false
	}
}

func skip(result *FreezeResult, reason string) *FreezeResult {
	result.Skipped = true
	result.Reason = reason
	return result
}

// FrozenPlatforms lists the current period's locks visible to an admin
func (s *freezeService) FrozenPlatforms(ctx context.Context, caller *models.User, modelID *uuid.UUID) ([]*models.FrozenPlatformRecord, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if modelID != nil {
		model, err := getModel(ctx, uow, *modelID)
		if err != nil {
			return nil, err
		}
		if err := RequireModelAccess(caller, model); err != nil {
			return nil, err
		}
	}

	period := s.calendar.CurrentPeriod(s.now())
	records, err := uow.FrozenPlatformRepository().List(ctx, period.Date, modelID)
	if err != nil {
		return nil, err
	}

	if modelID == nil && caller.Role != models.RoleSuperAdmin {
		visible, err := visibleModels(ctx, uow, caller)
		if err != nil {
			return nil, err
		}
		allowed := make(map[uuid.UUID]bool, len(visible))
		for _, m := range visible {
			allowed[m.ID] = true
		}
		filtered := records[:0]
		for _, rec := range records {
			if allowed[rec.ModelID] {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if records == nil {
		records = []*models.FrozenPlatformRecord{}
	}
	return records, nil
}

// Unfreeze lifts locks of the current period. It is refused once the period
// has started closing. Unfreezing every model needs a super admin.
func (s *freezeService) Unfreeze(ctx context.Context, caller *models.User, modelID *uuid.UUID, platformIDs []string) (int64, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return 0, err
	}
	if modelID == nil && caller.Role != models.RoleSuperAdmin {
		return 0, fmt.Errorf("%w: only super admins can unfreeze every model", ErrForbidden)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if modelID != nil {
		model, err := getModel(ctx, uow, *modelID)
		if err != nil {
			return 0, err
		}
		if err := RequireModelAccess(caller, model); err != nil {
			return 0, err
		}
	}

	period := s.calendar.CurrentPeriod(s.now())
	status, err := uow.ClosureStatusRepository().GetForUpdate(ctx, period)
	if err != nil {
		return 0, err
	}
	if status != nil && status.Status.AtLeast(models.ClosureStateClosingCalculators) {
		return 0, fmt.Errorf("%w: period %s is already %s", ErrConflict, period, status.Status)
	}

	removed, err := uow.FrozenPlatformRepository().Delete(ctx, period.Date, modelID, platformIDs)
	if err != nil {
		return 0, err
	}

	uow.EventBus().Publish(events.PlatformsUnfrozenEvent{
		Period:    period,
		ModelID:   modelID,
		Platforms: platformIDs,
		Removed:   removed,
		ActorID:   caller.ID,
	})

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit unfreeze: %w", err)
	}

	log.WithFields(log.Fields{
		"period":    period.String(),
		"modelID":   modelID,
		"platforms": platformIDs,
		"removed":   removed,
		"actor":     caller.ID,
	}).Info("Platforms unfrozen")

	return removed, nil
}

// Status returns the phase of a period
func (s *freezeService) Status(ctx context.Context, period models.Period) (*PeriodState, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	status, err := uow.ClosureStatusRepository().Get(ctx, period)
	if err != nil {
		return nil, err
	}

	state := &PeriodState{Period: period, Phase: PhaseOpen, Closure: status}
	if status != nil {
		switch status.Status {
		case models.ClosureStateEarlyFreezing:
			state.Phase = PhaseEarlyFrozen
		case models.ClosureStateClosingCalculators:
			state.Phase = PhaseClosing
		case models.ClosureStateCompleted:
			state.Phase = PhaseClosed
		case models.ClosureStateFailed:
			state.Phase = PhaseFailed
		}
	}
	return state, nil
}

// CurrentPeriod returns the period containing now
func (s *freezeService) CurrentPeriod() models.Period {
	return s.calendar.CurrentPeriod(s.now())
}

func missingPlatforms(ids []string, catalog map[string]*models.Platform) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := catalog[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
