package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/aggregate"
	"mercator-hq/callisto/pkg/alerting"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/forecast"
	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/ledger/storage"
	"mercator-hq/callisto/pkg/notify"
	"mercator-hq/callisto/pkg/policy"
)

type apiFixture struct {
	server   *Server
	store    storage.Backend
	policies policy.Store
	alerts   alerting.Store
	notifier *notify.FakeNotifier
	now      time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := storage.NewMemoryBackend()
	policies := policy.NewMemoryStore()
	alerts := alerting.NewMemoryStore(alerting.DefaultStoreConfig())
	notifier := notify.NewFakeNotifier()

	agg := aggregate.NewEngine(store).WithClock(clock)
	fc := forecast.NewEngine(agg).WithClock(clock)
	evaluator := alerting.NewEvaluator(policies, agg).WithClock(clock)
	dispatcher := alerting.NewDispatcher(evaluator, alerts, policies, notifier, alerting.DispatcherConfig{
		Recipients: alerting.Recipients{Default: "ops@example.com"},
	}).WithClock(clock)

	cfg := config.DefaultConfig()
	server := NewServer(&cfg.Server, &cfg.Telemetry.Metrics, Deps{
		Aggregator: agg,
		Forecaster: fc,
		Policies:   policies,
		Alerts:     alerts,
		Evaluator:  evaluator,
		Sweeper:    dispatcher,
	})
	server.now = clock

	return &apiFixture{
		server:   server,
		store:    store,
		policies: policies,
		alerts:   alerts,
		notifier: notifier,
		now:      now,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decodeBody(t, rec, &body)
	return body.Error.Code
}

func (f *apiFixture) seedSpend(t *testing.T, subjectID string, day time.Time, amount string) {
	t.Helper()
	err := f.store.Merge(context.Background(), &ledger.CostRecord{
		SubjectID:  subjectID,
		AccountID:  "acct-1",
		ResourceID: "vm-" + day.Format("2006-01-02"),
		Service:    "compute",
		UsageDate:  day,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "USD",
		Source:     ledger.SourceSync,
	})
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
}

// TestServer_CostTotal tests the period total endpoint, including the
// default current-month period.
func TestServer_CostTotal(t *testing.T) {
	f := newAPIFixture(t)
	f.seedSpend(t, "user-1", time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), "500.00")
	f.seedSpend(t, "user-1", time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), "350.00")
	f.seedSpend(t, "user-1", time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC), "99.00")

	rec := f.request(t, http.MethodGet, "/api/v1/subjects/user-1/costs/total", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SubjectID string           `json:"subject_id"`
		Period    aggregate.Period `json:"period"`
		Total     decimal.Decimal  `json:"total"`
	}
	decodeBody(t, rec, &resp)

	if resp.SubjectID != "user-1" {
		t.Errorf("Expected subject user-1, got %q", resp.SubjectID)
	}
	if resp.Period.String() != "2026-03" {
		t.Errorf("Expected the current period 2026-03, got %s", resp.Period)
	}
	if !resp.Total.Equal(decimal.RequireFromString("850.00")) {
		t.Errorf("Expected total 850.00, got %s", resp.Total)
	}

	// An explicit period selects the older month.
	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/costs/total?period=2026-02", "")
	decodeBody(t, rec, &resp)
	if !resp.Total.Equal(decimal.RequireFromString("99.00")) {
		t.Errorf("Expected February total 99.00, got %s", resp.Total)
	}
}

// TestServer_CostTotalInvalidPeriod tests the 400 for a bad period.
func TestServer_CostTotalInvalidPeriod(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/subjects/user-1/costs/total?period=03-2026", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_period" {
		t.Errorf("Expected code invalid_period, got %q", code)
	}
}

// TestServer_CostDaily tests the daily endpoint's inclusive to-day and
// range validation.
func TestServer_CostDaily(t *testing.T) {
	f := newAPIFixture(t)
	f.seedSpend(t, "user-1", time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), "10.00")
	f.seedSpend(t, "user-1", time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC), "20.00")

	rec := f.request(t, http.MethodGet, "/api/v1/subjects/user-1/costs/daily?from=2026-03-10&to=2026-03-12", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Days []aggregate.DailyCost `json:"days"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Days) != 2 {
		t.Errorf("Expected both days inside the inclusive window, got %d", len(resp.Days))
	}

	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/costs/daily?from=2026-03-12&to=2026-03-10", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a reversed range, got %d", rec.Code)
	}
}

// TestServer_Forecast tests forecast method selection and validation.
func TestServer_Forecast(t *testing.T) {
	f := newAPIFixture(t)
	for d := 1; d <= 10; d++ {
		f.seedSpend(t, "user-1", time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC), "20.00")
	}

	rec := f.request(t, http.MethodGet, "/api/v1/subjects/user-1/forecast?method=linear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result forecast.Result
	decodeBody(t, rec, &result)
	if result.Method != forecast.MethodLinear {
		t.Errorf("Expected method linear, got %s", result.Method)
	}
	if !result.Predicted.Equal(decimal.RequireFromString("600")) {
		t.Errorf("Expected predicted total 600, got %s", result.Predicted)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/forecast?method=crystal_ball", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for an unknown method, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_method" {
		t.Errorf("Expected code invalid_method, got %q", code)
	}

	// No method selects the comprehensive forecast.
	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/forecast", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var comp forecast.Comprehensive
	decodeBody(t, rec, &comp)
	if len(comp.Results) == 0 {
		t.Error("Expected per-method results in the comprehensive forecast")
	}
}

// TestServer_PolicyLifecycle tests create, list, patch, and delete.
func TestServer_PolicyLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/subjects/user-1/policies", `{
		"monthly_limit": "1000",
		"currency": "USD",
		"created_by": "admin"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created policy.Policy
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Error("Expected a generated policy id")
	}
	if !created.AlertsEnabled {
		t.Error("Expected alerts enabled by default")
	}
	if created.AlertThreshold != 0.80 {
		t.Errorf("Expected default threshold 0.80, got %v", created.AlertThreshold)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/policies", "")
	var listResp struct {
		Policies []*policy.Policy `json:"policies"`
	}
	decodeBody(t, rec, &listResp)
	if len(listResp.Policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(listResp.Policies))
	}

	rec = f.request(t, http.MethodPatch, "/api/v1/policies/"+created.ID, `{"monthly_limit": "2500"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated policy.Policy
	decodeBody(t, rec, &updated)
	if !updated.MonthlyLimit.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("Expected updated limit 2500, got %s", updated.MonthlyLimit)
	}

	rec = f.request(t, http.MethodDelete, "/api/v1/policies/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = f.request(t, http.MethodDelete, "/api/v1/policies/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a deleted policy, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Errorf("Expected code not_found, got %q", code)
	}
}

// TestServer_PolicyCreateInvalid tests that store validation surfaces
// as a 400.
func TestServer_PolicyCreateInvalid(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/subjects/user-1/policies", `{
		"monthly_limit": "-100",
		"currency": "USD",
		"created_by": "admin"
	}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "validation_failed" {
		t.Errorf("Expected code validation_failed, got %q", code)
	}
}

// TestServer_BudgetStatus tests the budget endpoint with and without an
// active policy.
func TestServer_BudgetStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/subjects/user-1/budget", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 without a policy, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "no_active_policy" {
		t.Errorf("Expected code no_active_policy, got %q", code)
	}

	f.request(t, http.MethodPost, "/api/v1/subjects/user-1/policies", `{
		"monthly_limit": "1000",
		"currency": "USD",
		"start_date": "2026-01-01T00:00:00Z",
		"created_by": "admin"
	}`)
	f.seedSpend(t, "user-1", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), "850.00")

	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/budget", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status alerting.BudgetStatus
	decodeBody(t, rec, &status)
	if status.PercentUsed != 0.85 {
		t.Errorf("Expected percent used 0.85, got %v", status.PercentUsed)
	}
	if status.OverBudget {
		t.Error("Expected under budget")
	}
	if status.DaysLeft != 17 {
		t.Errorf("Expected 17 days left on March 15, got %d", status.DaysLeft)
	}
}

// TestServer_SweepAndAlerts tests that an on-demand sweep dispatches an
// alert visible in the subject's history.
func TestServer_SweepAndAlerts(t *testing.T) {
	f := newAPIFixture(t)
	f.request(t, http.MethodPost, "/api/v1/subjects/user-1/policies", `{
		"monthly_limit": "1000",
		"currency": "USD",
		"start_date": "2026-01-01T00:00:00Z",
		"created_by": "admin"
	}`)
	f.seedSpend(t, "user-1", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), "850.00")

	rec := f.request(t, http.MethodPost, "/api/v1/sweep", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var sweep alerting.SweepResult
	decodeBody(t, rec, &sweep)
	if sweep.Dispatched != 1 {
		t.Errorf("Expected 1 alert dispatched, got %+v", sweep)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/subjects/user-1/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var history struct {
		Alerts []*alerting.Event `json:"alerts"`
	}
	decodeBody(t, rec, &history)
	if len(history.Alerts) != 1 {
		t.Fatalf("Expected 1 alert in history, got %d", len(history.Alerts))
	}
	event := history.Alerts[0]
	if event.Kind != alerting.KindThreshold || event.Status != alerting.StatusSent {
		t.Errorf("Unexpected event: kind=%s status=%s", event.Kind, event.Status)
	}
}

// TestServer_AlertsLimitValidation tests the history limit bounds.
func TestServer_AlertsLimitValidation(t *testing.T) {
	f := newAPIFixture(t)

	for _, raw := range []string{"0", "-5", "1001", "lots"} {
		rec := f.request(t, http.MethodGet, "/api/v1/subjects/user-1/alerts?limit="+raw, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", raw, rec.Code)
		}
	}
}

// TestServer_Healthz tests the health endpoint with and without a
// failing check.
func TestServer_Healthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	f.server.healthCheck = func(ctx context.Context) error {
		return errors.New("database unreachable")
	}
	rec = f.request(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 from a failing check, got %d", rec.Code)
	}
}
