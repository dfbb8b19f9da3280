package collector

import (
	"testing"
	"time"

	"apidiff/internal/config"
)

func TestCheckThresholds_Nil(t *testing.T) {
	r := CheckThresholds(nil, &Metrics{}, nil)
	if !r.Passed {
		t.Error("nil thresholds must pass")
	}
}

func TestCheckThresholds_LatencyPass(t *testing.T) {
	thresholds := &config.Thresholds{
		Duration: &config.DurationThresholds{P95: 500 * time.Millisecond},
	}
	m := &Metrics{Latency: LatencyMetrics{P95: 200}}

	r := CheckThresholds(thresholds, m, nil)

	if !r.Passed {
		t.Error("expected pass, p95 200ms < 500ms")
	}
	if len(r.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(r.Results))
	}
	if r.Results[0].Name != "req_duration.p95" {
		t.Errorf("unexpected name %s", r.Results[0].Name)
	}
}

func TestCheckThresholds_LatencyFail(t *testing.T) {
	thresholds := &config.Thresholds{
		Duration: &config.DurationThresholds{Avg: 100 * time.Millisecond},
	}
	m := &Metrics{Latency: LatencyMetrics{Avg: 150}}

	r := CheckThresholds(thresholds, m, nil)

	if r.Passed {
		t.Error("expected fail, avg 150ms >= 100ms")
	}
	if len(r.Violations()) != 1 {
		t.Errorf("expected 1 violation, got %d", len(r.Violations()))
	}
}

func TestCheckThresholds_FailureRate(t *testing.T) {
	thresholds := &config.Thresholds{
		Failed: &config.FailureThresholds{Rate: "1%"},
	}

	pass := &Metrics{TotalRequests: 1000, SuccessRate: 99.5}
	if r := CheckThresholds(thresholds, pass, nil); !r.Passed {
		t.Error("expected 0.5%% failure rate to pass a 1%% threshold")
	}

	fail := &Metrics{TotalRequests: 1000, SuccessRate: 95.0}
	if r := CheckThresholds(thresholds, fail, nil); r.Passed {
		t.Error("expected 5%% failure rate to fail a 1%% threshold")
	}
}

func TestCheckThresholds_Comparison(t *testing.T) {
	thresholds := &config.Thresholds{
		Comparison: &config.ComparisonThresholds{
			MaxCritical:   0,
			MaxErrors:     2,
			MaxWarnings:   10,
			MinSimilarity: "95%",
		},
	}

	pass := &ComparisonSummary{Pairs: 10, ErrorCount: 1, WarningCount: 3, MinSimilarity: 97.5}
	if r := CheckThresholds(thresholds, &Metrics{}, pass); !r.Passed {
		t.Errorf("expected pass, got %+v", r.Violations())
	}

	critical := &ComparisonSummary{Pairs: 10, CriticalCount: 1, MinSimilarity: 99}
	if r := CheckThresholds(thresholds, &Metrics{}, critical); r.Passed {
		t.Error("one critical difference must fail a max_critical=0 threshold")
	}

	drifted := &ComparisonSummary{Pairs: 10, MinSimilarity: 90}
	if r := CheckThresholds(thresholds, &Metrics{}, drifted); r.Passed {
		t.Error("90%% similarity must fail a 95%% floor")
	}
}

func TestCheckThresholds_ComparisonSkippedWithoutBaseline(t *testing.T) {
	thresholds := &config.Thresholds{
		Comparison: &config.ComparisonThresholds{MaxCritical: 0},
	}

	r := CheckThresholds(thresholds, &Metrics{}, nil)
	if !r.Passed || len(r.Results) != 0 {
		t.Errorf("comparison thresholds must be skipped without a baseline, got %+v", r.Results)
	}
}

func TestParsePercentage(t *testing.T) {
	if v, err := parsePercentage("1.5%"); err != nil || v != 1.5 {
		t.Errorf("expected 1.5, got %v err=%v", v, err)
	}
	if _, err := parsePercentage("1.5"); err == nil {
		t.Error("expected error for missing %% suffix")
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0.5, "500µs"},
		{42, "42ms"},
		{1500, "1.5s"},
	}
	for _, tt := range tests {
		if got := FormatLatency(tt.ms); got != tt.want {
			t.Errorf("FormatLatency(%v) = %s, want %s", tt.ms, got, tt.want)
		}
	}
}
