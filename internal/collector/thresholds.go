package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"apidiff/internal/config"
)

// ComparisonSummary aggregates baseline drift across all compared pairs.
type ComparisonSummary struct {
	Pairs         int     `json:"pairs"`
	EqualPairs    int     `json:"equalPairs"`
	CriticalCount int     `json:"criticalCount"`
	ErrorCount    int     `json:"errorCount"`
	WarningCount  int     `json:"warningCount"`
	InfoCount     int     `json:"infoCount"`
	MinSimilarity float64 `json:"minSimilarity"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// CheckThresholds evaluates configured thresholds against computed
// metrics and the comparison summary. cmp may be nil when the run did not
// compare against a baseline; comparison thresholds are then skipped.
func CheckThresholds(t *config.Thresholds, m *Metrics, cmp *ComparisonSummary) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	if t.Duration != nil {
		results.checkLatencyThresholds(t.Duration, &m.Latency)
	}
	if t.Failed != nil && t.Failed.Rate != "" {
		results.checkFailureRate(t.Failed, m)
	}
	if t.Comparison != nil && cmp != nil {
		results.checkComparison(t.Comparison, cmp)
	}

	return results
}

func (r *ThresholdResults) checkLatencyThresholds(thresholds *config.DurationThresholds, actual *LatencyMetrics) {
	checks := []struct {
		name      string
		threshold time.Duration
		actual    float64
	}{
		{"req_duration.avg", thresholds.Avg, actual.Avg},
		{"req_duration.p50", thresholds.P50, actual.P50},
		{"req_duration.p90", thresholds.P90, actual.P90},
		{"req_duration.p95", thresholds.P95, actual.P95},
		{"req_duration.p99", thresholds.P99, actual.P99},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}

		limitMs := float64(check.threshold) / float64(time.Millisecond)
		passed := check.actual < limitMs
		if !passed {
			r.Passed = false
		}

		r.Results = append(r.Results, ThresholdResult{
			Name:      check.name,
			Passed:    passed,
			Threshold: FormatLatency(limitMs),
			Actual:    FormatLatency(check.actual),
		})
	}
}

func (r *ThresholdResults) checkFailureRate(thresholds *config.FailureThresholds, m *Metrics) {
	thresholdRate, err := parsePercentage(thresholds.Rate)
	if err != nil {
		return
	}

	actualRate := 0.0
	if m.TotalRequests > 0 {
		actualRate = 100.0 - m.SuccessRate
	}
	passed := actualRate < thresholdRate
	if !passed {
		r.Passed = false
	}

	r.Results = append(r.Results, ThresholdResult{
		Name:      "req_failed.rate",
		Passed:    passed,
		Threshold: thresholds.Rate,
		Actual:    fmt.Sprintf("%.2f%%", actualRate),
	})
}

func (r *ThresholdResults) checkComparison(t *config.ComparisonThresholds, cmp *ComparisonSummary) {
	counts := []struct {
		name  string
		limit int
		count int
	}{
		{"comparison.critical", t.MaxCritical, cmp.CriticalCount},
		{"comparison.errors", t.MaxErrors, cmp.ErrorCount},
		{"comparison.warnings", t.MaxWarnings, cmp.WarningCount},
	}

	for _, check := range counts {
		if check.limit < 0 {
			continue
		}

		passed := check.count <= check.limit
		if !passed {
			r.Passed = false
		}

		r.Results = append(r.Results, ThresholdResult{
			Name:      check.name,
			Passed:    passed,
			Threshold: fmt.Sprintf("<= %d", check.limit),
			Actual:    strconv.Itoa(check.count),
		})
	}

	if t.MinSimilarity != "" {
		minSim, err := parsePercentage(t.MinSimilarity)
		if err != nil {
			return
		}

		passed := cmp.MinSimilarity >= minSim
		if !passed {
			r.Passed = false
		}

		r.Results = append(r.Results, ThresholdResult{
			Name:      "comparison.similarity",
			Passed:    passed,
			Threshold: t.MinSimilarity,
			Actual:    fmt.Sprintf("%.1f%%", cmp.MinSimilarity),
		})
	}
}

func parsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("invalid percentage format: %s", s)
	}
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(s, 64)
}

// FormatLatency formats a millisecond value for display.
func FormatLatency(ms float64) string {
	if ms < 1 {
		return fmt.Sprintf("%dµs", int64(ms*1000))
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", int64(ms))
	}
	if ms < 60_000 {
		return fmt.Sprintf("%.1fs", ms/1000)
	}
	d := time.Duration(ms * float64(time.Millisecond))
	return d.Round(time.Second).String()
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}
