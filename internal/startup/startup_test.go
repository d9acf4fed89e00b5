package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_SET_VAR", "custom")
	if got := getEnv("TEST_SET_VAR", "default"); got != "custom" {
		t.Errorf("getEnv = %q, want custom", got)
	}

	if err := os.Unsetenv("TEST_UNSET_VAR"); err != nil {
		t.Fatalf("failed to unset env var: %v", err)
	}
	if got := getEnv("TEST_UNSET_VAR", "default"); got != "default" {
		t.Errorf("getEnv = %q, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"numeric true", "1", false, true},
		{"invalid falls back", "banana", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.value)
			if got := getEnvBool("TEST_BOOL_VAR", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR_VAR", "45s")
	if got := getEnvDuration("TEST_DUR_VAR", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration = %v, want 45s", got)
	}

	t.Setenv("TEST_DUR_VAR", "not-a-duration")
	if got := getEnvDuration("TEST_DUR_VAR", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration fallback = %v, want 1m", got)
	}
}

func TestLoadConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("LIBRARY_DIR", filepath.Join(base, "library"))
	t.Setenv("CACHE_DIR", filepath.Join(base, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "db"))
	t.Setenv("PORT", "18080")
	t.Setenv("REFRESH_INTERVAL", "5m")
	t.Setenv("SCAN_CONCURRENT", "false")
	t.Setenv("SCAN_BUDGET", "90s")
	t.Setenv("CLASSIFIER_URL", "http://127.0.0.1:9999")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != "18080" {
		t.Errorf("Port = %s, want 18080", config.Port)
	}
	if config.RefreshInterval != 5*time.Minute {
		t.Errorf("RefreshInterval = %v, want 5m", config.RefreshInterval)
	}
	if config.ScanConcurrent {
		t.Error("ScanConcurrent should be false")
	}
	if config.ScanBudget != 90*time.Second {
		t.Errorf("ScanBudget = %v, want 90s", config.ScanBudget)
	}
	if config.ClassifierURL != "http://127.0.0.1:9999" {
		t.Errorf("ClassifierURL = %s", config.ClassifierURL)
	}
	if config.DatabasePath != filepath.Join(config.DatabaseDir, "catalog.db") {
		t.Errorf("DatabasePath = %s", config.DatabasePath)
	}
	if !config.PreviewsEnabled {
		t.Error("PreviewsEnabled should be true with a writable cache dir")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/scan", "api/scan"},
		{"/api/results/{id}/image", "api/results"},
		{"/healthz", "healthz"},
		{"/metrics", "metrics"},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
