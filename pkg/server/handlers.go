package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/aggregate"
	"mercator-hq/callisto/pkg/forecast"
	"mercator-hq/callisto/pkg/policy"
)

const (
	defaultDriverLimit = 10
	defaultTrendMonths = 6
	maxHistoryLimit    = 1000
)

// parsePeriod reads the "period" query parameter, defaulting to the
// current calendar month.
func (s *Server) parsePeriod(r *http.Request) (aggregate.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return aggregate.PeriodOf(s.now()), nil
	}
	return aggregate.ParsePeriod(raw)
}

func parseDay(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", raw)
	}
	return t, nil
}

func (s *Server) handleCostTotal(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	period, err := s.parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error())
		return
	}

	total, err := s.aggregator.PeriodTotal(r.Context(), subjectID, period)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"period":     period,
		"total":      total,
	})
}

func (s *Server) handleCostBreakdown(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	period, err := s.parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error())
		return
	}

	breakdown, err := s.aggregator.BreakdownByService(r.Context(), subjectID, period)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"period":     period,
		"services":   breakdown,
	})
}

func (s *Server) handleCostDaily(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	q := r.URL.Query()

	period := aggregate.PeriodOf(s.now())
	from, to := period.Start(), period.End()

	if raw := q.Get("from"); raw != "" {
		day, err := parseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		from = day
	}
	if raw := q.Get("to"); raw != "" {
		day, err := parseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		// The query window is [from, to) internally; an inclusive "to"
		// day is friendlier at the API boundary.
		to = day.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "invalid_range", "from must be before to")
		return
	}

	days, err := s.aggregator.DailyTrend(r.Context(), subjectID, from, to)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"days":       days,
	})
}

func (s *Server) handleCostDrivers(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	period, err := s.parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error())
		return
	}

	limit := defaultDriverLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
	}

	drivers, err := s.aggregator.TopDrivers(r.Context(), subjectID, period, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"period":     period,
		"drivers":    drivers,
	})
}

func (s *Server) handleCostMonthly(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")

	months := defaultTrendMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		var err error
		months, err = strconv.Atoi(raw)
		if err != nil || months < 1 {
			writeError(w, http.StatusBadRequest, "invalid_months", "months must be a positive integer")
			return
		}
	}

	trend, err := s.aggregator.MonthlyTrend(r.Context(), subjectID, months)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"months":     trend,
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	method := r.URL.Query().Get("method")

	if method == "" {
		comprehensive, err := s.forecaster.Comprehensive(r.Context(), subjectID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comprehensive)
		return
	}

	if !forecast.Method(method).Valid() {
		writeError(w, http.StatusBadRequest, "invalid_method",
			fmt.Sprintf("unknown forecast method %q", method))
		return
	}

	result, err := s.forecaster.Forecast(r.Context(), subjectID, forecast.Method(method))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// policyRequest is the JSON body for creating a policy.
type policyRequest struct {
	MonthlyLimit   decimal.Decimal `json:"monthly_limit"`
	Currency       string          `json:"currency"`
	AlertThreshold *float64        `json:"alert_threshold"`
	AlertsEnabled  *bool           `json:"alerts_enabled"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
	CreatedBy      string          `json:"created_by"`
}

func (s *Server) handlePolicyCreate(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")

	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	p := &policy.Policy{
		SubjectID:    subjectID,
		MonthlyLimit: req.MonthlyLimit,
		Currency:     req.Currency,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		CreatedBy:    req.CreatedBy,
		// Alerts default on; an explicit false disables them.
		AlertsEnabled: req.AlertsEnabled == nil || *req.AlertsEnabled,
	}
	if req.AlertThreshold != nil {
		p.AlertThreshold = *req.AlertThreshold
	}
	if p.StartDate.IsZero() {
		p.StartDate = s.now().UTC()
	}

	if err := s.policies.Create(r.Context(), p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handlePolicyList(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")

	list, err := s.policies.List(r.Context(), subjectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"policies":   list,
	})
}

// patchRequest is the JSON body for updating a policy. Absent fields
// are left untouched.
type patchRequest struct {
	MonthlyLimit   *decimal.Decimal `json:"monthly_limit"`
	Currency       *string          `json:"currency"`
	AlertThreshold *float64         `json:"alert_threshold"`
	AlertsEnabled  *bool            `json:"alerts_enabled"`
	StartDate      *time.Time       `json:"start_date"`
	EndDate        *time.Time       `json:"end_date"`
	ClearEndDate   bool             `json:"clear_end_date"`
}

func (s *Server) handlePolicyUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	updated, err := s.policies.Update(r.Context(), id, &policy.Patch{
		MonthlyLimit:   req.MonthlyLimit,
		Currency:       req.Currency,
		AlertThreshold: req.AlertThreshold,
		AlertsEnabled:  req.AlertsEnabled,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		ClearEndDate:   req.ClearEndDate,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handlePolicyDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.policies.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")

	status, err := s.evaluator.Evaluate(r.Context(), subjectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, "no_active_policy", "subject has no active budget policy")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) parseHistoryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil // store default
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit)
	}
	return limit, nil
}

func (s *Server) handleAlertsBySubject(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")

	limit, err := s.parseHistoryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	events, err := s.alerts.HistoryBySubject(r.Context(), subjectID, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"alerts":     events,
	})
}

func (s *Server) handleAlertsByPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := r.PathValue("id")

	limit, err := s.parseHistoryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	events, err := s.alerts.HistoryByPolicy(r.Context(), policyID, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"policy_id": policyID,
		"alerts":    events,
	})
}

// handleSweep triggers a budget sweep on demand. It runs through the
// same dispatch path as the scheduled sweep, so cooldown dedup applies.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
