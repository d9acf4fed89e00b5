// Package scan drives the sensitivity scan pipeline: a cancellable,
// bounded-concurrency fan-out over an immutable asset snapshot.
//
// A Scanner owns the lifecycle. Each Start call snapshots the library,
// resets the result store, and runs a saturated worker pool: whenever a
// worker finishes one asset it immediately claims the next, so at most
// the configured number of assets are in the fetch/classify phase at any
// moment. Per-asset failures are contained: a fetch or classification
// error counts the asset as processed and moves on, never aborting the
// session. Results land in completion order, not enumeration order.
package scan
