// Package server provides the HTTP API for cost queries, forecasts,
// budget policies, alert history, and the manual sweep trigger.
package server
