// Callisto is a cost aggregation and budget alerting service.
//
// It syncs daily usage costs from external billing providers into a
// local ledger, serves aggregation and forecasting queries over an HTTP
// API, and dispatches budget alerts when subjects cross their policy
// thresholds.
//
// Usage:
//
//	# Start the service with default configuration
//	callisto serve
//
//	# Start with a custom configuration file
//	callisto serve --config /etc/callisto/config.yaml
//
//	# Run one provider sync for a specific day
//	callisto sync --day 2026-08-28
//
//	# Run one budget sweep
//	callisto sweep
//
//	# Purge expired ledger and alert rows
//	callisto cleanup
//
//	# Show version information
//	callisto version
package main

func main() {
	Execute()
}
