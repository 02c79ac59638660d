// Package provider is the client boundary to the external metered-billing
// source.
//
// The HTTP client retries transient failures with exponential backoff and
// sits behind a circuit breaker, so a flapping provider trips open instead
// of burning the retry budget on every sync. Auth and validation failures
// are permanent and never retried. Retrying happens at the batch level; a
// fetch either yields the full day's rows or an error.
package provider
