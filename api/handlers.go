package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"earnings/models"
	"earnings/service"
)

// Handler holds the services behind the HTTP endpoints
type Handler struct {
	calculator service.CalculatorService
	rates      service.RateService
	freeze     service.FreezeService
	closure    service.ClosureService
	now        func() time.Time
}

// NewHandler creates a new handler
func NewHandler(calculator service.CalculatorService, rates service.RateService, freeze service.FreezeService, closure service.ClosureService) *Handler {
	return &Handler{
		calculator: calculator,
		rates:      rates,
		freeze:     freeze,
		closure:    closure,
		now:        time.Now,
	}
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", service.ErrValidation, err)
	}
	return nil
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

// =============================================================================
// CALCULATOR
// =============================================================================

// ListPlatforms handles GET /api/calculator/platforms
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.calculator.ListPlatforms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, platforms)
}

// GetConfig handles GET /api/calculator/config?modelId=
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())

	modelID, err := h.modelParam(r, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.calculator.GetConfig(r.Context(), caller, modelID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, view)
}

// UpdateConfig handles POST /api/calculator/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	update, err := req.toUpdate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	cfg, err := h.calculator.UpdateConfig(r.Context(), CallerFrom(r.Context()), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, cfg)
}

// ListModels handles GET /api/calculator/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.calculator.ListModels(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, summaries)
}

// AdminView handles GET /api/calculator/admin-view?modelId=
func (h *Handler) AdminView(w http.ResponseWriter, r *http.Request) {
	modelID, err := optionalUUIDParam(r, "modelId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.calculator.AdminView(r.Context(), CallerFrom(r.Context()), modelID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, view)
}

// GetModelValues handles GET /api/calculator/model-values?modelId=
func (h *Handler) GetModelValues(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())

	modelID, err := h.modelParam(r, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.calculator.GetModelValues(r.Context(), caller, modelID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, view)
}

// SaveModelValues handles POST /api/calculator/model-values
func (h *Handler) SaveModelValues(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())

	var req SaveValuesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	modelID := caller.ID
	if req.ModelID != "" {
		id, err := parseUUID("modelId", req.ModelID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		modelID = id
	}

	values := make(map[string]string, len(req.Values))
	for platformID, value := range req.Values {
		values[platformID] = value.String()
	}

	view, err := h.calculator.SaveModelValues(r.Context(), caller, modelID, values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, view)
}

// History handles GET /api/calculator/history?modelId=&periodDate=&periodType=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := h.calculator.History(r.Context(), CallerFrom(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, records)
}

// modelParam reads modelId, defaulting to the caller
func (h *Handler) modelParam(r *http.Request, caller *models.User) (uuid.UUID, error) {
	modelID, err := optionalUUIDParam(r, "modelId")
	if err != nil {
		return uuid.Nil, err
	}
	if modelID == nil {
		return caller.ID, nil
	}
	return *modelID, nil
}

// =============================================================================
// PERIOD CLOSURE
// =============================================================================

// PeriodStatus handles GET /api/calculator/period-closure/status
func (h *Handler) PeriodStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := periodParam(q.Get("periodDate"), q.Get("periodType"), h.freeze.CurrentPeriod())
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, err := h.freeze.Status(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, state)
}

// EarlyFreeze handles POST /api/calculator/period-closure/early-freeze
func (h *Handler) EarlyFreeze(w http.ResponseWriter, r *http.Request) {
	var req FreezeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.freeze.RunEarlyFreeze(r.Context(), h.now(), req.Force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, result)
}

// ForceReset handles POST /api/calculator/force-reset
func (h *Handler) ForceReset(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	period, err := periodParam(req.PeriodDate, req.PeriodType, h.freeze.CurrentPeriod())
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.closure.ForceReset(r.Context(), CallerFrom(r.Context()), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, result)
}

// ListFrozen handles GET /api/admin/unfreeze-platforms?modelId=
func (h *Handler) ListFrozen(w http.ResponseWriter, r *http.Request) {
	modelID, err := optionalUUIDParam(r, "modelId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := h.freeze.FrozenPlatforms(r.Context(), CallerFrom(r.Context()), modelID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, records)
}

// Unfreeze handles DELETE /api/admin/unfreeze-platforms?modelId=&platformIds=a,b
func (h *Handler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	modelID, err := optionalUUIDParam(r, "modelId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	removed, err := h.freeze.Unfreeze(r.Context(), CallerFrom(r.Context()), modelID, splitList(r.URL.Query().Get("platformIds")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, UnfreezeResponse{Removed: removed})
}

// =============================================================================
// RATES
// =============================================================================

// ListRates handles GET /api/rates?groupId=
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	groupID, err := optionalUUIDParam(r, "groupId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rates, err := h.rates.ListCurrent(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rates == nil {
		rates = []*models.Rate{}
	}

	writeOK(w, RatesResponse{
		Rates:    rates,
		Resolved: h.rates.ResolveRates(r.Context(), groupID),
	})
}

// ActivateRate handles POST /api/rates
func (h *Handler) ActivateRate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rate, err := h.rates.ActivateRate(r.Context(), CallerFrom(r.Context()), models.RateKind(req.Kind), req.Scope, req.Value.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, rate)
}

// =============================================================================
// CRON TRIGGERS
// =============================================================================

// CronEarlyFreeze handles GET /api/cron/period-closure-early-freeze
func (h *Handler) CronEarlyFreeze(w http.ResponseWriter, r *http.Request) {
	result, err := h.freeze.RunEarlyFreeze(r.Context(), h.now(), r.URL.Query().Get("force") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, result)
}

// CronDxliveFreeze handles GET /api/cron/period-closure-dxlive-freeze
func (h *Handler) CronDxliveFreeze(w http.ResponseWriter, r *http.Request) {
	result, err := h.freeze.RunCustomFreeze(r.Context(), "dxlive", h.now(), r.URL.Query().Get("force") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, result)
}

// CronClose handles GET /api/cron/period-closure-close
func (h *Handler) CronClose(w http.ResponseWriter, r *http.Request) {
	result, err := h.closure.CloseDue(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, result)
}
