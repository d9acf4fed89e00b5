package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCountersIncrement(t *testing.T) {
	before := counterValue(t, ScanAssetsProcessed)
	ScanAssetsProcessed.Inc()
	after := counterValue(t, ScanAssetsProcessed)

	if after != before+1 {
		t.Errorf("ScanAssetsProcessed = %v, want %v", after, before+1)
	}
}

func TestLabeledCounters(t *testing.T) {
	c := ScanSessionsTotal.WithLabelValues("completed")
	before := counterValue(t, c)
	c.Inc()
	if got := counterValue(t, c); got != before+1 {
		t.Errorf("ScanSessionsTotal{completed} = %v, want %v", got, before+1)
	}

	ClassifierCallsTotal.WithLabelValues("image", "positive").Inc()
	ClassifierCallsTotal.WithLabelValues("video", "unavailable").Inc()
	FetchTotal.WithLabelValues("image", "error").Inc()
}

func TestGaugesSettable(t *testing.T) {
	ScanRunning.Set(1)
	ScanRunning.Set(0)
	ScanWorkers.Set(4)
	CatalogAssets.WithLabelValues("image").Set(120)
}
