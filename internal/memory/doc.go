// Package memory configures Go's runtime memory limit and provides
// backpressure signals for memory-intensive work.
//
// Image decoding during a scan can allocate tens of megabytes per asset,
// and in containers that risks OOM kills: unlike GOMAXPROCS, GOMEMLIMIT
// is not auto-detected from cgroup limits. [ConfigureFromEnv] derives
// GOMEMLIMIT from the container's memory limit (passed via the
// Kubernetes Downward API as MEMORY_LIMIT), reserving headroom for
// libvips, FFmpeg and goroutine stacks via MEMORY_RATIO.
//
// Call it first thing in main, before significant allocations:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ... rest of application
//	}
//
// The [Monitor] type adds runtime tracking: when heap usage crosses the
// critical water mark it pauses consumers until the garbage collector
// recovers. Scan workers gate their decodes on it:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if !monitor.WaitIfPaused() {
//	    return // shutting down
//	}
//	// ... decode image
package memory
