package run

import (
	"encoding/json"
	"fmt"
	"io"

	"apidiff/internal/collector"
	"apidiff/internal/compare"
	"apidiff/internal/core"
)

// Report is the result of one run.
type Report struct {
	Mode       Mode                          `json:"mode"`
	Metrics    *collector.Metrics            `json:"metrics"`
	Comparison *collector.ComparisonSummary  `json:"comparison,omitempty"`
	Thresholds *collector.ThresholdResults   `json:"thresholds,omitempty"`
	// Results holds only the compared pairs that differ.
	Results []*compare.Result `json:"differences,omitempty"`
	// Outcomes is the full ordered outcome set; kept out of the JSON
	// report, baseline files carry it.
	Outcomes []core.Outcome `json:"-"`
}

// Passed reports whether the run met its thresholds.
func (r *Report) Passed() bool {
	return r.Thresholds == nil || r.Thresholds.Passed
}

// Write renders the report as "text" or "json".
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case "text", "":
		collector.FormatText(w, r.Metrics, r.Comparison, r.Thresholds)
		for _, res := range r.Results {
			fmt.Fprintln(w, "")
			res.FormatText(w)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}
