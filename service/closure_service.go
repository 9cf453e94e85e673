package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"earnings/events"
	"earnings/models"
)

const backfillBatchSize = 200

// ModelClosureError records why one model could not be archived
type ModelClosureError struct {
	ModelID uuid.UUID `json:"model_id"`
	Error   string    `json:"error"`
}

// ClosureResult summarizes a closure run
type ClosureResult struct {
	Period   models.Period       `json:"period"`
	Status   models.ClosureState `json:"status,omitempty"`
	Skipped  bool                `json:"skipped"`
	Reason   string              `json:"reason,omitempty"`
	Models   int                 `json:"models"`
	Archived int64               `json:"archived"`
	Reset    int64               `json:"reset"`
	Errors   []ModelClosureError `json:"errors"`
}

// BackfillResult summarizes a rate backfill run
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// closureService implements the ClosureService interface
type closureService struct {
	uowFactory  UnitOfWorkFactory
	rateService RateService
	calculator  *PayoutCalculator
	calendar    *Calendar
	now         func() time.Time
}

// NewClosureService creates a new closure service
func NewClosureService(uowFactory UnitOfWorkFactory, rateService RateService, calculator *PayoutCalculator, calendar *Calendar) ClosureService {
	return &closureService{
		uowFactory:  uowFactory,
		rateService: rateService,
		calculator:  calculator,
		calendar:    calendar,
		now:         time.Now,
	}
}

// CloseDue closes the previous period when now is a period opening day
func (s *closureService) CloseDue(ctx context.Context, now time.Time) (*ClosureResult, error) {
	period := s.calendar.CurrentPeriod(now).Previous()
	if !s.calendar.IsOpeningDay(now) {
		log.WithField("period", period.String()).Debug("Not a period opening day, skipping closure")
		return &ClosureResult{
			Period:  period,
			Skipped: true,
			Reason:  "not a period opening day",
			Errors:  []ModelClosureError{},
		}, nil
	}
	return s.ClosePeriod(ctx, period)
}

// ForceReset closes a period on an admin's request
func (s *closureService) ForceReset(ctx context.Context, caller *models.User, period models.Period) (*ClosureResult, error) {
	if err := RequireRole(caller, AdminRoles...); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"period": period.String(),
		"actor":  caller.ID,
	}).Warn("Forced period reset requested")

	return s.ClosePeriod(ctx, period)
}

// ClosePeriod archives every configured model's values for the period and
// then clears them. Each model is archived and reset in its own transaction
// so a failing model never leaves another half-archived. A completed period
// is never archived twice.
func (s *closureService) ClosePeriod(ctx context.Context, period models.Period) (*ClosureResult, error) {
	result := &ClosureResult{Period: period, Errors: []ModelClosureError{}}
	logger := log.WithField("period", period.String())

	configs, platforms, reason, err := s.beginClosure(ctx, period)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		logger.WithField("reason", reason).Info("Skipping period closure")
		result.Skipped = true
		result.Reason = reason
		result.Status = models.ClosureStateCompleted
		return result, nil
	}

	logger.WithField("models", len(configs)).Info("Starting period closure")

	rates := newRateCache(ctx, s.rateService)
	for _, cfg := range configs {
		archived, reset, err := s.archiveModel(ctx, period, cfg, platforms, rates.get(cfg.GroupID))
		if err != nil {
			logger.WithError(err).WithField("modelID", cfg.ModelID).Error("Failed to archive model")
			result.Errors = append(result.Errors, ModelClosureError{ModelID: cfg.ModelID, Error: err.Error()})
			continue
		}
		result.Models++
		result.Archived += archived
		result.Reset += reset
	}

	result.Status = models.ClosureStateCompleted
	if len(result.Errors) > 0 {
		result.Status = models.ClosureStateFailed
	}

	if err := s.finishClosure(ctx, period, result); err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"status":   result.Status,
		"models":   result.Models,
		"archived": result.Archived,
		"reset":    result.Reset,
		"failures": len(result.Errors),
	}).Info("Period closure finished")

	return result, nil
}

func (s *closureService) beginClosure(ctx context.Context, period models.Period) ([]*models.PayoutConfig, map[string]*models.Platform, string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	status, err := uow.ClosureStatusRepository().GetForUpdate(ctx, period)
	if err != nil {
		return nil, nil, "", err
	}
	if status.IsClosed() {
		return nil, nil, "period already closed", nil
	}

	if status == nil {
		status = &models.ClosureStatus{PeriodDate: period.Date, PeriodType: period.Type}
	}
	if status.Metadata == nil {
		status.Metadata = map[string]interface{}{}
	}
	status.Status = models.ClosureStateClosingCalculators
	status.Metadata["closure_started_at"] = s.now().UTC().Format(time.RFC3339)
	if err := uow.ClosureStatusRepository().Upsert(ctx, status); err != nil {
		return nil, nil, "", err
	}

	configs, err := uow.PayoutConfigRepository().ListActive(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	platforms, err := platformIndex(ctx, uow)
	if err != nil {
		return nil, nil, "", err
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, "", fmt.Errorf("failed to commit closure start: %w", err)
	}
	return configs, platforms, "", nil
}

// archiveModel copies one model's values into history with the rate
// snapshot and deletes them, atomically
func (s *closureService) archiveModel(ctx context.Context, period models.Period, cfg *models.PayoutConfig, platforms map[string]*models.Platform, rates *ResolvedRates) (int64, int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	values, err := uow.ModelValueRepository().LockByModelAndPeriod(ctx, cfg.ModelID, period.Date)
	if err != nil {
		return 0, 0, err
	}
	if len(values) == 0 {
		return 0, 0, nil
	}

	breakdown, err := s.calculator.Breakdown(values, platforms, cfg, rates)
	if err != nil {
		return 0, 0, err
	}

	records := HistoryRecords(cfg.ModelID, period, breakdown)
	archived, err := uow.HistoryRepository().CreateBatch(ctx, records)
	if err != nil {
		return 0, 0, err
	}
	if archived != int64(len(records)) {
		return 0, 0, fmt.Errorf("%w: %d of %d values already archived for period %s", ErrConflict, int64(len(records))-archived, len(records), period)
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.ID)
	}
	reset, err := uow.ModelValueRepository().DeleteByIDs(ctx, cfg.ModelID, ids)
	if err != nil {
		return 0, 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit archive: %w", err)
	}
	return archived, reset, nil
}

func (s *closureService) finishClosure(ctx context.Context, period models.Period, result *ClosureResult) error {
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
		status = &models.ClosureStatus{PeriodDate: period.Date, PeriodType: period.Type}
	}
	if status.Metadata == nil {
		status.Metadata = map[string]interface{}{}
	}

	errs := make([]interface{}, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, map[string]interface{}{"model_id": e.ModelID.String(), "error": e.Error})
	}

	status.Status = result.Status
	status.Metadata["closure"] = map[string]interface{}{
		"finished_at": s.now().UTC().Format(time.RFC3339),
		"models":      result.Models,
		"archived":    result.Archived,
		"reset":       result.Reset,
		"errors":      errs,
	}
	if err := uow.ClosureStatusRepository().Upsert(ctx, status); err != nil {
		return err
	}

	uow.EventBus().Publish(events.PeriodClosedEvent{
		Period:   period,
		Status:   result.Status,
		Models:   result.Models,
		Archived: result.Archived,
		Reset:    result.Reset,
		Failures: len(result.Errors),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit closure status: %w", err)
	}
	return nil
}

// BackfillRates fills null rate and amount columns of archived records using
// the rates that were effective when each record was archived. Columns that
// already hold a value are never overwritten, so the run is idempotent.
func (s *closureService) BackfillRates(ctx context.Context) (*BackfillResult, error) {
	result := &BackfillResult{}

	configs, platforms, err := s.backfillReferenceData(ctx)
	if err != nil {
		return nil, err
	}

	var afterID int64
	for {
		batch, err := s.missingRatesBatch(ctx, afterID)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		for _, rec := range batch {
			afterID = rec.ID
			result.Scanned++

			if err := s.backfillRecord(ctx, rec, configs[rec.ModelID], platforms); err != nil {
				log.WithError(err).WithField("recordID", rec.ID).Error("Failed to backfill history record")
				result.Failed++
				continue
			}
			result.Updated++
		}
	}

	log.WithFields(log.Fields{
		"scanned": result.Scanned,
		"updated": result.Updated,
		"failed":  result.Failed,
	}).Info("History rate backfill finished")

	return result, nil
}

func (s *closureService) backfillReferenceData(ctx context.Context) (map[uuid.UUID]*models.PayoutConfig, map[string]*models.Platform, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	configs, err := activeConfigIndex(ctx, uow)
	if err != nil {
		return nil, nil, err
	}
	platforms, err := platformIndex(ctx, uow)
	if err != nil {
		return nil, nil, err
	}
	return configs, platforms, nil
}

func (s *closureService) missingRatesBatch(ctx context.Context, afterID int64) ([]*models.HistoryRecord, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.HistoryRepository().ListMissingRates(ctx, afterID, backfillBatchSize)
}

func (s *closureService) backfillRecord(ctx context.Context, rec *models.HistoryRecord, cfg *models.PayoutConfig, platforms map[string]*models.Platform) error {
	platform, ok := platforms[rec.PlatformID]
	if !ok {
		return fmt.Errorf("unknown platform %q", rec.PlatformID)
	}

	var groupID *uuid.UUID
	if cfg != nil {
		groupID = cfg.GroupID
	}
	snapshot := s.rateService.RatesAt(ctx, rec.ArchivedAt, groupID).Rates

	// Keep any rate already on the row so amounts stay consistent with it
	if rec.RateEURUSD != nil {
		snapshot.EURUSD = *rec.RateEURUSD
	}
	if rec.RateGBPUSD != nil {
		snapshot.GBPUSD = *rec.RateGBPUSD
	}
	if rec.RateUSDCOP != nil {
		snapshot.USDCOP = *rec.RateUSDCOP
	}

	gross := rec.ValueUSDBruto
	if gross == nil {
		g, err := s.calculator.Rules().ToGrossUSD(platform.ID, platform.Currency, rec.Value, snapshot)
		if err != nil {
			return err
		}
		gross = &g
	}

	pct := rec.PercentageApplied
	if pct == nil {
		p := s.calculator.Percentage(platform.ID, cfg)
		pct = &p
	}

	usdModel := rec.ValueUSDModelo
	if usdModel == nil {
		u := gross.Mul(*pct).Div(hundred)
		usdModel = &u
	}

	copModel := rec.ValueCOPModelo
	if copModel == nil {
		c := usdModel.Mul(snapshot.USDCOP).Round(0)
		copModel = &c
	}

	filled := *rec
	filled.ValueUSDBruto = gross
	filled.PercentageApplied = pct
	filled.ValueUSDModelo = usdModel
	filled.ValueCOPModelo = copModel
	filled.RateEURUSD = decimalPtr(snapshot.EURUSD)
	filled.RateGBPUSD = decimalPtr(snapshot.GBPUSD)
	filled.RateUSDCOP = decimalPtr(snapshot.USDCOP)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.HistoryRepository().FillMissing(ctx, &filled); err != nil {
		return err
	}
	return uow.Commit()
}
