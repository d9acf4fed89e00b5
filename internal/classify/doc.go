// Package classify defines the sensitivity classifier contract and an
// HTTP client for a local analysis sidecar.
//
// The classifier is intentionally opaque: callers get a boolean verdict
// per asset and never see scores or model details. Unavailability is a
// distinct condition (ErrUnavailable) so the scan pipeline can treat it
// as a negative verdict without aborting the session.
package classify
