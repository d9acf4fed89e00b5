package logging

import "testing"

func TestLogLevelString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestGetLevelIsStable(t *testing.T) {
	t.Parallel()

	first := GetLevel()
	for i := 0; i < 5; i++ {
		if got := GetLevel(); got != first {
			t.Fatalf("GetLevel changed between calls: %v -> %v", first, got)
		}
	}
}

func TestLoggingDoesNotPanic(t *testing.T) {
	t.Parallel()

	Debug("debug %d", 1)
	Info("info %s", "message")
	Warn("warn %v", nil)
	Error("error %q", "value")
}
