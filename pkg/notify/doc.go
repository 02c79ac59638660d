// Package notify defines the notification transport the alert dispatcher
// hands rendered messages to.
//
// The transport is fire-and-forget from the dispatcher's perspective:
// delivery failures are recorded on the alert event, never propagated.
// Implementations: SMTP for production, a log-only notifier for
// development, and a scriptable fake for tests.
package notify
