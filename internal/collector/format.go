package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// FormatText writes the run summary in human-readable format. cmp and
// thresholds may be nil.
func FormatText(w io.Writer, m *Metrics, cmp *ComparisonSummary, thresholds *ThresholdResults) {
	if m.TotalRequests == 0 {
		fmt.Fprintln(w, "No outcomes collected")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "apidiff - Regression Run Results")
	fmt.Fprintln(w, "================================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:       %v\n", m.RunDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Requests: %s\n", formatNumber(m.TotalRequests))
	fmt.Fprintf(w, "Success Rate:   %.1f%% (%s / %s)\n",
		m.SuccessRate, formatNumber(m.SuccessCount), formatNumber(m.TotalRequests))
	fmt.Fprintf(w, "Requests/sec:   %.1f\n", m.RequestsPerSec)
	fmt.Fprintf(w, "Retried:        %s\n", formatNumber(m.RetriedRequests))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Response Times:")
	fmt.Fprintf(w, "  Min:    %s\n", FormatLatency(m.Latency.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatLatency(m.Latency.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatLatency(m.Latency.P50))
	fmt.Fprintf(w, "  P90:    %s\n", FormatLatency(m.Latency.P90))
	fmt.Fprintf(w, "  P95:    %s\n", FormatLatency(m.Latency.P95))
	fmt.Fprintf(w, "  P99:    %s\n", FormatLatency(m.Latency.P99))
	fmt.Fprintf(w, "  Max:    %s\n", FormatLatency(m.Latency.Max))

	if len(m.StatusCodes) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Status Codes:")
		for _, code := range sortedIntKeys(m.StatusCodes) {
			fmt.Fprintf(w, "  %d: %s\n", code, formatNumber(m.StatusCodes[code]))
		}
	}

	if len(m.ErrorKinds) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Errors:")
		for _, kind := range sortedStringKeys(m.ErrorKinds) {
			fmt.Fprintf(w, "  %-20s %s\n", kind, formatNumber(m.ErrorKinds[kind]))
		}
	}

	if len(m.Decisions) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Decisions:")
		for _, decision := range sortedStringKeys(m.Decisions) {
			fmt.Fprintf(w, "  %-20s %s\n", decision, formatNumber(m.Decisions[decision]))
		}
	}

	for _, field := range sortedStringKeys(m.Extracted) {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "%s:\n", field)
		for _, value := range sortedStringKeys(m.Extracted[field]) {
			fmt.Fprintf(w, "  %-20s %s\n", value, formatNumber(m.Extracted[field][value]))
		}
	}

	if cmp != nil && cmp.Pairs > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Baseline Comparison:")
		fmt.Fprintf(w, "  Pairs:          %s (%s identical)\n",
			formatNumber(cmp.Pairs), formatNumber(cmp.EqualPairs))
		fmt.Fprintf(w, "  Min Similarity: %.1f%%\n", cmp.MinSimilarity)
		fmt.Fprintf(w, "  Differences:    critical=%d error=%d warning=%d info=%d\n",
			cmp.CriticalCount, cmp.ErrorCount, cmp.WarningCount, cmp.InfoCount)
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

// FormatJSON writes the run summary in JSON format.
func FormatJSON(w io.Writer, m *Metrics, cmp *ComparisonSummary, thresholds *ThresholdResults) {
	output := struct {
		Duration        string                    `json:"duration"`
		TotalRequests   int                       `json:"totalRequests"`
		SuccessCount    int                       `json:"successCount"`
		FailureCount    int                       `json:"failureCount"`
		SuccessRate     float64                   `json:"successRate"`
		RequestsPerSec  float64                   `json:"requestsPerSec"`
		RetriedRequests int                       `json:"retriedRequests"`
		TotalAttempts   int                       `json:"totalAttempts"`
		Latency         LatencyMetrics            `json:"latency"`
		StatusCodes     map[string]int            `json:"statusCodes,omitempty"`
		ErrorKinds      map[string]int            `json:"errorKinds,omitempty"`
		Decisions       map[string]int            `json:"decisions,omitempty"`
		Extracted       map[string]map[string]int `json:"extracted,omitempty"`
		Comparison      *ComparisonSummary        `json:"comparison,omitempty"`
		Thresholds      *ThresholdResults         `json:"thresholds,omitempty"`
	}{
		Duration:        m.RunDuration.Round(time.Millisecond).String(),
		TotalRequests:   m.TotalRequests,
		SuccessCount:    m.SuccessCount,
		FailureCount:    m.FailureCount,
		SuccessRate:     m.SuccessRate,
		RequestsPerSec:  m.RequestsPerSec,
		RetriedRequests: m.RetriedRequests,
		TotalAttempts:   m.TotalAttempts,
		Latency:         m.Latency,
		ErrorKinds:      m.ErrorKinds,
		Decisions:       m.Decisions,
		Extracted:       m.Extracted,
		Comparison:      cmp,
		Thresholds:      thresholds,
	}

	if len(m.StatusCodes) > 0 {
		output.StatusCodes = make(map[string]int, len(m.StatusCodes))
		for code, n := range m.StatusCodes {
			output.StatusCodes[fmt.Sprintf("%d", code)] = n
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%d,%03d", n/1000, n%1000)
}
