// Package background adapts scan sessions to an external execution
// budget: a run-time allowance with per-unit progress accounting and an
// expiration signal the scan answers with cancellation.
package background
