package memory

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("MemoryLimitBytes = %d, want 0", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark != 0.7 {
		t.Errorf("HighWaterMark = %f, want 0.7", cfg.HighWaterMark)
	}
	if cfg.CriticalWaterMark != 0.85 {
		t.Errorf("CriticalWaterMark = %f, want 0.85", cfg.CriticalWaterMark)
	}
}

func TestNewMonitorExplicitLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 100 * 1024 * 1024

	monitor := NewMonitor(cfg)
	if monitor.limit != cfg.MemoryLimitBytes {
		t.Errorf("limit = %d, want %d", monitor.limit, cfg.MemoryLimitBytes)
	}
	if monitor.IsPaused() {
		t.Error("fresh monitor should not be paused")
	}
}

func TestMonitorStartStop(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 100 * 1024 * 1024
	cfg.CheckInterval = 10 * time.Millisecond

	monitor := NewMonitor(cfg)
	monitor.Start()
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
}

func TestWaitIfPausedPassesWhenNotPaused(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 1 << 40 // far above any test allocation

	monitor := NewMonitor(cfg)
	if !monitor.WaitIfPaused() {
		t.Error("WaitIfPaused returned false on an unpaused monitor")
	}
}

func TestWaitIfPausedUnblocksOnStop(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 100 * 1024 * 1024

	monitor := NewMonitor(cfg)
	monitor.mu.Lock()
	monitor.isPaused = true
	monitor.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- monitor.WaitIfPaused()
	}()

	monitor.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused should return false when stopped while paused")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not unblock on Stop")
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 100 * 1024 * 1024

	monitor := NewMonitor(cfg)
	monitor.checkMemory()

	current, limit, usage := monitor.GetStats()
	if current <= 0 {
		t.Error("current allocation should be positive after a check")
	}
	if limit != cfg.MemoryLimitBytes {
		t.Errorf("limit = %d, want %d", limit, cfg.MemoryLimitBytes)
	}
	if usage <= 0 {
		t.Error("usage ratio should be positive")
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
