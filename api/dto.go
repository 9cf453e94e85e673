package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"earnings/models"
	"earnings/service"
)

// UpdateConfigRequest is the body of POST /api/calculator/config
type UpdateConfigRequest struct {
	ModelID            string           `json:"modelId"`
	GroupID            *string          `json:"groupId"`
	EnabledPlatforms   []string         `json:"enabledPlatforms"`
	PercentageOverride *decimal.Decimal `json:"percentageOverride"`
	MinQuotaOverride   *decimal.Decimal `json:"minQuotaOverride"`
	GroupPercentage    *decimal.Decimal `json:"groupPercentage"`
	GroupMinQuota      *decimal.Decimal `json:"groupMinQuota"`
}

func (req UpdateConfigRequest) toUpdate() (service.ConfigUpdate, error) {
	modelID, err := parseUUID("modelId", req.ModelID)
	if err != nil {
		return service.ConfigUpdate{}, err
	}

	update := service.ConfigUpdate{
		ModelID:            modelID,
		EnabledPlatforms:   req.EnabledPlatforms,
		PercentageOverride: req.PercentageOverride,
		MinQuotaOverride:   req.MinQuotaOverride,
		GroupPercentage:    req.GroupPercentage,
		GroupMinQuota:      req.GroupMinQuota,
	}
	if req.GroupID != nil && *req.GroupID != "" {
		groupID, err := parseUUID("groupId", *req.GroupID)
		if err != nil {
			return service.ConfigUpdate{}, err
		}
		update.GroupID = &groupID
	}
	return update, nil
}

// SaveValuesRequest is the body of POST /api/calculator/model-values
type SaveValuesRequest struct {
	ModelID string                     `json:"modelId"`
	Values  map[string]decimal.Decimal `json:"values"`
}

// FreezeRequest is the optional body of the manual early freeze trigger
type FreezeRequest struct {
	Force bool `json:"force"`
}

// PeriodRequest names a period; empty fields mean the current period
type PeriodRequest struct {
	PeriodDate string `json:"periodDate"`
	PeriodType string `json:"periodType"`
}

// ActivateRateRequest is the body of POST /api/rates
type ActivateRateRequest struct {
	Kind  string          `json:"kind"`
	Scope string          `json:"scope"`
	Value decimal.Decimal `json:"value"`
}

// RatesResponse lists current rate rows and the effective resolution
type RatesResponse struct {
	Rates    []*models.Rate         `json:"rates"`
	Resolved *service.ResolvedRates `json:"resolved"`
}

// UnfreezeResponse reports how many locks were lifted
type UnfreezeResponse struct {
	Removed int64 `json:"removed"`
}

func parseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", service.ErrValidation, field)
	}
	return id, nil
}

// optionalUUIDParam reads a UUID query parameter, nil when absent
func optionalUUIDParam(r *http.Request, name string) (*uuid.UUID, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	id, err := parseUUID(name, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// periodParam resolves an explicit period or falls back to current
func periodParam(date, periodType string, current models.Period) (models.Period, error) {
	if date == "" {
		if periodType != "" {
			return models.Period{}, fmt.Errorf("%w: periodDate is required with periodType", service.ErrValidation)
		}
		return current, nil
	}
	period, err := models.ParsePeriod(date, models.PeriodType(periodType))
	if err != nil {
		return models.Period{}, fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return period, nil
}

func historyFilter(r *http.Request) (models.HistoryFilter, error) {
	q := r.URL.Query()
	var filter models.HistoryFilter

	modelID, err := optionalUUIDParam(r, "modelId")
	if err != nil {
		return filter, err
	}
	filter.ModelID = modelID

	if date := q.Get("periodDate"); date != "" {
		d, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return filter, fmt.Errorf("%w: periodDate must be YYYY-MM-DD", service.ErrValidation)
		}
		filter.PeriodDate = &d
	}

	if periodType := models.PeriodType(q.Get("periodType")); periodType != "" {
		if !periodType.Valid() {
			return filter, fmt.Errorf("%w: periodType must be %q or %q", service.ErrValidation, models.PeriodFirstHalf, models.PeriodSecondHalf)
		}
		filter.PeriodType = periodType
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("%w: limit must be a positive integer", service.ErrValidation)
		}
		filter.Limit = n
	}

	return filter, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
