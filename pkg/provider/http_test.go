package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	}
}

// TestHTTPClient_FetchDailyCosts tests a successful fetch: request
// shape, auth header, and decoded rows.
func TestHTTPClient_FetchDailyCosts(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(fetchResponse{Rows: []UsageRow{
			{
				Service:     "compute",
				ResourceKey: "vm-1",
				Amount:      decimal.RequireFromString("12.50"),
				Currency:    "USD",
				Date:        time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
			},
		}})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL))
	from := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	rows, err := client.FetchDailyCosts(context.Background(), "cred-1", from, from)
	if err != nil {
		t.Fatalf("FetchDailyCosts() failed: %v", err)
	}

	if gotPath != "/v1/costs/daily" {
		t.Errorf("Expected path /v1/costs/daily, got %q", gotPath)
	}
	if gotQuery != "from=2026-03-14&to=2026-03-14" {
		t.Errorf("Unexpected query: %q", gotQuery)
	}
	if gotAuth != "Bearer cred-1" {
		t.Errorf("Expected bearer auth with the credentials ref, got %q", gotAuth)
	}

	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0].ResourceKey != "vm-1" || !rows[0].Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("Decoded row is wrong: %+v", rows[0])
	}
}

// TestHTTPClient_RetriesTransientFailures tests that 5xx responses are
// retried and a later success wins.
func TestHTTPClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(fetchResponse{})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL))
	day := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	if _, err := client.FetchDailyCosts(context.Background(), "cred-1", day, day); err != nil {
		t.Fatalf("FetchDailyCosts() failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

// TestHTTPClient_AuthFailureNotRetried tests that a 401 is permanent:
// one attempt, no retries.
func TestHTTPClient_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL))
	day := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	_, err := client.FetchDailyCosts(context.Background(), "bad-cred", day, day)
	if err == nil {
		t.Fatal("Expected an error for rejected credentials")
	}
	if IsTransient(err) {
		t.Errorf("Auth failure should be permanent, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", got)
	}
}

// TestHTTPClient_BreakerOpens tests that consecutive failures trip the
// breaker and short-circuit later calls.
func TestHTTPClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.BreakerFailures = 2
	config.BreakerCooldown = time.Minute
	client := NewHTTPClient(config)

	day := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	if _, err := client.FetchDailyCosts(context.Background(), "cred-1", day, day); err == nil {
		t.Fatal("Expected the first fetch to fail")
	}
	reached := calls.Load()

	// The breaker is open now; the next fetch must not reach the server.
	if _, err := client.FetchDailyCosts(context.Background(), "cred-1", day, day); err == nil {
		t.Fatal("Expected the second fetch to fail fast")
	}
	if calls.Load() != reached {
		t.Errorf("Open breaker still let requests through: %d -> %d", reached, calls.Load())
	}
}

// TestHTTPClient_MalformedResponse tests that undecodable bodies are
// permanent failures.
func TestHTTPClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL))
	day := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	_, err := client.FetchDailyCosts(context.Background(), "cred-1", day, day)

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if perr.Transient {
		t.Error("Malformed response should be permanent")
	}
}

// TestFakeClient_DateFiltering tests that the fake serves only rows in
// the inclusive [from, to] window.
func TestFakeClient_DateFiltering(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
	}

	fake := NewFakeClient()
	fake.Seed("cred-1", []UsageRow{
		{ResourceKey: "before", Date: day(10)},
		{ResourceKey: "start", Date: day(11)},
		{ResourceKey: "end", Date: day(13)},
		{ResourceKey: "after", Date: day(14)},
	})

	rows, err := fake.FetchDailyCosts(context.Background(), "cred-1", day(11), day(13))
	if err != nil {
		t.Fatalf("FetchDailyCosts() failed: %v", err)
	}
	if len(rows) != 2 || rows[0].ResourceKey != "start" || rows[1].ResourceKey != "end" {
		t.Errorf("Expected [start end], got %+v", rows)
	}

	if rows, _ := fake.FetchDailyCosts(context.Background(), "other-cred", day(11), day(13)); len(rows) != 0 {
		t.Errorf("Expected no rows for an unseeded ref, got %d", len(rows))
	}

	fake.Err = errors.New("scripted failure")
	if _, err := fake.FetchDailyCosts(context.Background(), "cred-1", day(11), day(13)); err == nil {
		t.Error("Expected the scripted error")
	}
	if fake.Calls != 3 {
		t.Errorf("Expected 3 recorded calls, got %d", fake.Calls)
	}
}
