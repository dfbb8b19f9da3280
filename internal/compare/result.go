// Package compare implements the deep structural JSON comparator that
// turns two response trees into a classified, path-addressed diff.
package compare

import (
	"encoding/json"
	"fmt"
	"io"
)

// Kind classifies a single structural difference.
type Kind string

const (
	KindTypeChanged       Kind = "TYPE_CHANGED"
	KindNullChanged       Kind = "NULL_CHANGED"
	KindValueChanged      Kind = "VALUE_CHANGED"
	KindKeyAdded          Kind = "KEY_ADDED"
	KindKeyRemoved        Kind = "KEY_REMOVED"
	KindLengthChanged     Kind = "LENGTH_CHANGED"
	KindItemAdded         Kind = "ITEM_ADDED"
	KindItemRemoved       Kind = "ITEM_REMOVED"
	KindPerformanceChange Kind = "PERFORMANCE_CHANGE"
)

// Severity tags how much a difference matters to the regression verdict.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Difference is one structural discrepancy between two compared values,
// addressed by a dotted/bracketed path (root.a.b[2]).
type Difference struct {
	Path     string   `json:"path"`
	Kind     Kind     `json:"kind"`
	Old      any      `json:"old_value"`
	New      any      `json:"new_value"`
	Severity Severity `json:"severity"`
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: %s (%v → %v) [%s]", d.Path, d.Kind, d.Old, d.New, d.Severity)
}

// Result holds the outcome of one comparison pass. Differences are
// appended in a deterministic order during the pass and never mutated
// afterward.
type Result struct {
	Name                string       `json:"name"`
	Differences         []Difference `json:"differences"`
	TotalFieldsCompared int          `json:"total_fields_compared"`
	AreEqual            bool         `json:"are_equal"`
}

func (r *Result) add(path string, kind Kind, old, new any, severity Severity) {
	r.Differences = append(r.Differences, Difference{
		Path:     path,
		Kind:     kind,
		Old:      old,
		New:      new,
		Severity: severity,
	})
}

// finalize derives the fields that depend on the collected differences.
func (r *Result) finalize() {
	r.AreEqual = len(r.Differences) == 0
}

// Similarity returns a 0-100 score: the share of compared fields that did
// not differ. An empty comparison counts as fully similar.
func (r *Result) Similarity() float64 {
	if r.TotalFieldsCompared == 0 {
		if len(r.Differences) == 0 {
			return 100
		}
		return 0
	}
	s := (1 - float64(len(r.Differences))/float64(r.TotalFieldsCompared)) * 100
	if s < 0 {
		return 0
	}
	return s
}

// ByKind counts differences per kind.
func (r *Result) ByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, d := range r.Differences {
		counts[d.Kind]++
	}
	return counts
}

// BySeverity counts differences per severity.
func (r *Result) BySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, d := range r.Differences {
		counts[d.Severity]++
	}
	return counts
}

// CountSeverity returns how many differences carry the given severity.
func (r *Result) CountSeverity(s Severity) int {
	n := 0
	for _, d := range r.Differences {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// FormatText writes the result in flat human-readable form, one line per
// difference.
func (r *Result) FormatText(w io.Writer) {
	fmt.Fprintf(w, "Comparison: %s\n", r.Name)
	fmt.Fprintf(w, "Equal: %v\n", r.AreEqual)
	fmt.Fprintf(w, "Similarity: %.1f%%\n", r.Similarity())
	fmt.Fprintf(w, "Differences: %d\n", len(r.Differences))
	if len(r.Differences) == 0 {
		return
	}
	fmt.Fprintln(w, "")
	for _, d := range r.Differences {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// FormatJSON writes the result as indented JSON for the reporting
// collaborator.
func (r *Result) FormatJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
