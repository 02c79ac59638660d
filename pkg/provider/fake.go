package provider

import (
	"context"
	"sync"
	"time"
)

// FakeClient serves scripted rows per credentials reference. For tests and
// demo runs.
type FakeClient struct {
	mu   sync.Mutex
	rows map[string][]UsageRow

	// Err, when non-nil, is returned by every fetch.
	Err error

	// Calls counts FetchDailyCosts invocations.
	Calls int
}

// NewFakeClient creates an empty fake provider.
func NewFakeClient() *FakeClient {
	return &FakeClient{rows: make(map[string][]UsageRow)}
}

// Name identifies the provider implementation.
func (c *FakeClient) Name() string { return "fake" }

// Seed registers rows to serve for a credentials reference.
func (c *FakeClient) Seed(credentialsRef string, rows []UsageRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[credentialsRef] = rows
}

// FetchDailyCosts returns the seeded rows whose dates fall in [from, to].
func (c *FakeClient) FetchDailyCosts(ctx context.Context, credentialsRef string, from, to time.Time) ([]UsageRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}

	var out []UsageRow
	for _, row := range c.rows[credentialsRef] {
		day := row.Date.UTC().Truncate(24 * time.Hour)
		if day.Before(from.UTC().Truncate(24*time.Hour)) || day.After(to.UTC().Truncate(24*time.Hour)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
