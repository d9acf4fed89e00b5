package memory

import (
	"fmt"
	"runtime/debug"
	"testing"
)

func TestConfigureFromEnvNoLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("expected no configuration with empty environment")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want none", result.Source)
	}
}

func TestConfigureFromEnvContainerLimit(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(prev)

	limit := int64(512 * 1024 * 1024)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", fmt.Sprintf("%d", limit))
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()
	if !result.Configured {
		t.Fatal("expected configuration from MEMORY_LIMIT")
	}
	if result.Source != "MEMORY_LIMIT" {
		t.Errorf("Source = %q, want MEMORY_LIMIT", result.Source)
	}
	if result.ContainerLimit != limit {
		t.Errorf("ContainerLimit = %d, want %d", result.ContainerLimit, limit)
	}
	want := int64(float64(limit) * DefaultMemoryRatio)
	if result.GoMemLimit != want {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, want)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(prev)

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()
	if result.Ratio != 0.5 {
		t.Errorf("Ratio = %f, want 0.5", result.Ratio)
	}
	if result.GoMemLimit != 536870912 {
		t.Errorf("GoMemLimit = %d, want 536870912", result.GoMemLimit)
	}
}

func TestConfigureFromEnvBadValues(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "not-a-number")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("expected no configuration from unparseable MEMORY_LIMIT")
	}
}
