// Package policy stores per-subject budget policies: a monthly spending
// limit, an alert threshold, and a validity window.
//
// A policy is "active" for a subject at time T when its validity window
// covers T. The store does not enforce that only one policy is active; when
// several windows overlap, the most recently created policy is
// authoritative and Active returns only that one.
//
// Updates use a Patch with optional fields, so callers change exactly the
// fields they supply and nothing else.
package policy
