package collector

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"apidiff/internal/core"
	"apidiff/internal/template"
)

// Metrics contains aggregated run results.
type Metrics struct {
	TotalRequests   int            `json:"totalRequests"`
	SuccessCount    int            `json:"successCount"`
	FailureCount    int            `json:"failureCount"`
	SuccessRate     float64        `json:"successRate"`
	RequestsPerSec  float64        `json:"requestsPerSec"`
	RunDuration     time.Duration  `json:"runDuration"`
	Latency         LatencyMetrics `json:"latency"`
	StatusCodes     map[int]int    `json:"statusCodes"`
	ErrorKinds      map[string]int `json:"errorKinds"`
	Decisions       map[string]int `json:"decisions"`
	// Extracted holds per-field value distributions for the configured
	// extraction rules, keyed by rule name.
	Extracted       map[string]map[string]int `json:"extracted,omitempty"`
	TotalAttempts   int                       `json:"totalAttempts"`
	RetriedRequests int                       `json:"retriedRequests"`
}

// LatencyMetrics contains response time statistics in milliseconds.
type LatencyMetrics struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// ComputeMetrics computes metrics from outcomes. Pure function, no side
// effects. decisionPath, when non-empty, is a JSONPath into response
// bodies whose values are tallied (for example $.decision.status).
// extract maps additional field names to JSONPaths; each resolved value
// is tallied per field under Extracted.
func ComputeMetrics(outcomes []core.Outcome, runDuration time.Duration, decisionPath string, extract map[string]string) *Metrics {
	m := &Metrics{
		RunDuration: runDuration,
		StatusCodes: make(map[int]int),
		ErrorKinds:  make(map[string]int),
		Decisions:   make(map[string]int),
	}

	if len(outcomes) == 0 {
		return m
	}

	latencies := make([]float64, 0, len(outcomes))

	for _, out := range outcomes {
		m.TotalRequests++
		if out.Success {
			m.SuccessCount++
		} else {
			m.FailureCount++
		}

		if out.StatusCode != 0 {
			m.StatusCodes[out.StatusCode]++
		}
		if out.ErrorKind != "" {
			m.ErrorKinds[string(out.ErrorKind)]++
		}

		m.TotalAttempts += out.Attempts
		if out.Attempts > 1 {
			m.RetriedRequests++
		}

		// Rejected requests never hit the wire; a zero latency would
		// skew the distribution.
		if out.ResponseTimeMs > 0 {
			latencies = append(latencies, out.ResponseTimeMs)
		}

		if out.Success && (decisionPath != "" || len(extract) > 0) {
			raw := marshalBody(out.Body)
			if decisionPath != "" {
				if decision := template.ExtractString(raw, decisionPath); decision != "" {
					m.Decisions[decision]++
				}
			}
			m.tallyExtracted(raw, extract)
		}
	}

	m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalRequests) * 100

	if m.RunDuration > 0 {
		m.RequestsPerSec = float64(m.TotalRequests) / m.RunDuration.Seconds()
	}

	m.Latency = ComputeLatencyMetrics(latencies)

	return m
}

func marshalBody(body any) []byte {
	if body == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return raw
}

// tallyExtracted resolves every extraction rule against one response body
// and counts the values. Bodies missing any rule path are skipped whole;
// responses within a run are homogeneous, so a miss means the rules do
// not fit this target rather than a partial payload.
func (m *Metrics) tallyExtracted(raw []byte, extract map[string]string) {
	if len(extract) == 0 || raw == nil {
		return
	}
	values, err := template.Extract(raw, extract)
	if err != nil {
		return
	}
	if m.Extracted == nil {
		m.Extracted = make(map[string]map[string]int, len(extract))
	}
	for name, value := range values {
		if m.Extracted[name] == nil {
			m.Extracted[name] = make(map[string]int)
		}
		m.Extracted[name][fmt.Sprintf("%v", value)]++
	}
}

// ComputePercentile calculates the percentile value from a sorted slice.
// The percentile p should be between 0 and 1 (e.g., 0.95 for p95). The
// slice must be sorted in ascending order. Nearest-rank method.
func ComputePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}

// ComputeLatencyMetrics calculates all latency statistics from a slice of
// response times in milliseconds.
func ComputeLatencyMetrics(latencies []float64) LatencyMetrics {
	if len(latencies) == 0 {
		return LatencyMetrics{}
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var total float64
	for _, l := range sorted {
		total += l
	}

	return LatencyMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / float64(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P90: ComputePercentile(sorted, 0.90),
		P95: ComputePercentile(sorted, 0.95),
		P99: ComputePercentile(sorted, 0.99),
	}
}
