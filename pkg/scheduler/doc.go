// Package scheduler runs the recurring background jobs: the hourly
// budget sweep, the daily provider sync, and the weekly retention
// cleanup. Jobs are cron-driven and each run is isolated, so one
// failing cycle never takes the others down.
package scheduler
