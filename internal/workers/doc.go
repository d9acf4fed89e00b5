/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

When running in containers, the number of available CPUs may be limited by
cgroup constraints. While Go 1.19+ automatically sets GOMAXPROCS based on
container CPU limits, runtime.NumCPU() still returns the host machine's CPU
count. This package sizes worker pools from GOMAXPROCS so scan concurrency
respects container resource limits.

Basic usage:

	// Classification fan-out: one worker per available CPU, or one
	// worker total when the concurrent toggle is off.
	numWorkers := workers.ForScan(concurrent)

	// I/O-bound work (catalog walking, file hashing)
	numWorkers := workers.ForIO(16)

All functions respect the SCAN_WORKERS environment variable, allowing
operators to override the automatic calculation.
*/
package workers
