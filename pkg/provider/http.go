package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

// HTTPConfig contains configuration for the HTTP provider client.
type HTTPConfig struct {
	// BaseURL is the provider API root, e.g. "https://billing.example.com".
	BaseURL string

	// RequestTimeout bounds one fetch attempt.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// MaxRetries is the bounded attempt count for transient failures.
	// Default: 4
	MaxRetries int

	// InitialBackoff is the first retry delay; subsequent delays grow
	// exponentially.
	// Default: 500ms
	InitialBackoff time.Duration

	// BreakerFailures is how many consecutive failures trip the breaker.
	// Default: 5
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before probing.
	// Default: 60 seconds
	BreakerCooldown time.Duration
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 4
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = 60 * time.Second
	}
	return c
}

// HTTPClient implements Client against the provider's JSON API.
type HTTPClient struct {
	config  HTTPConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewHTTPClient creates an HTTP provider client.
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	config = config.withDefaults()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "billing-provider",
		Timeout: config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
	})

	return &HTTPClient{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		breaker: breaker,
		logger:  slog.Default().With("component", "provider.http"),
	}
}

// Name identifies the provider implementation.
func (c *HTTPClient) Name() string { return "http" }

// FetchDailyCosts fetches the account's cost rows for the date range,
// retrying transient failures with exponential backoff behind the breaker.
func (c *HTTPClient) FetchDailyCosts(ctx context.Context, credentialsRef string, from, to time.Time) ([]UsageRow, error) {
	operation := func() ([]UsageRow, error) {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchOnce(ctx, credentialsRef, from, to)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// The breaker is open; retrying inside this call is pointless.
			return nil, backoff.Permanent(NewError(c.Name(), true, err))
		}
		if err != nil {
			if !IsTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return out.([]UsageRow), nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.config.InitialBackoff

	rows, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(c.config.MaxRetries)),
	)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// fetchResponse is the provider's wire format.
type fetchResponse struct {
	Rows []UsageRow `json:"rows"`
}

func (c *HTTPClient) fetchOnce(ctx context.Context, credentialsRef string, from, to time.Time) ([]UsageRow, error) {
	endpoint := fmt.Sprintf("%s/v1/costs/daily?%s", c.config.BaseURL, url.Values{
		"from": {from.UTC().Format("2006-01-02")},
		"to":   {to.UTC().Format("2006-01-02")},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewError(c.Name(), false, err)
	}
	req.Header.Set("Authorization", "Bearer "+credentialsRef)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Network and timeout failures are worth retrying.
		return nil, NewError(c.Name(), true, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewError(c.Name(), false, fmt.Errorf("authentication rejected (status %d)", resp.StatusCode))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewError(c.Name(), true, fmt.Errorf("provider unavailable (status %d)", resp.StatusCode))
	default:
		return nil, NewError(c.Name(), false, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(c.Name(), true, err)
	}

	var decoded fetchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, NewError(c.Name(), false, fmt.Errorf("malformed response: %w", err))
	}

	return decoded.Rows, nil
}
