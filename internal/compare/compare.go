package compare

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"apidiff/internal/core"
)

// DefaultNumericTolerance is the maximum absolute delta two numbers may
// have and still compare equal.
const DefaultNumericTolerance = 0.001

// performanceDriftRatio is the relative response-time change (against the
// first outcome) that gets flagged as a performance difference.
const performanceDriftRatio = 0.2

// DefaultIgnoreKeys are object keys excluded from comparison: volatile
// fields that legitimately differ between runs.
func DefaultIgnoreKeys() []string {
	return []string{"timestamp", "created_at", "updated_at", "request_id"}
}

// Options configure a Comparator.
type Options struct {
	IgnoreKeys       []string
	NumericTolerance float64
	CaseSensitive    bool
}

// DefaultOptions returns the standard comparison settings.
func DefaultOptions() Options {
	return Options{
		IgnoreKeys:       DefaultIgnoreKeys(),
		NumericTolerance: DefaultNumericTolerance,
		CaseSensitive:    true,
	}
}

// Comparator performs deep structural comparison of JSON-like values. It
// holds no mutable state across calls and is safe for concurrent use.
type Comparator struct {
	ignore    map[string]struct{}
	tolerance float64
	caseFold  bool
}

// New creates a Comparator from options. A zero tolerance falls back to
// the default.
func New(opts Options) *Comparator {
	ignore := make(map[string]struct{}, len(opts.IgnoreKeys))
	for _, k := range opts.IgnoreKeys {
		ignore[k] = struct{}{}
	}
	tol := opts.NumericTolerance
	if tol <= 0 {
		tol = DefaultNumericTolerance
	}
	return &Comparator{
		ignore:    ignore,
		tolerance: tol,
		caseFold:  !opts.CaseSensitive,
	}
}

// CompareJSON diffs two JSON-like values rooted at "root".
func (c *Comparator) CompareJSON(name string, a, b any) *Result {
	r := &Result{Name: name}
	c.deepCompare(a, b, r, "root")
	ca := countFields(a, nil)
	cb := countFields(b, nil)
	if cb > ca {
		ca = cb
	}
	r.TotalFieldsCompared = ca
	r.finalize()
	return r
}

// CompareOutcomes diffs two dispatch outcomes: the response bodies plus
// status code, success flag and response-time drift.
func (c *Comparator) CompareOutcomes(a, b core.Outcome) *Result {
	r := &Result{
		Name: fmt.Sprintf("%s vs %s", a.RequestID, b.RequestID),
	}

	c.deepCompare(a.Body, b.Body, r, "body")

	if a.StatusCode != b.StatusCode {
		r.add("status_code", KindValueChanged, a.StatusCode, b.StatusCode, SeverityError)
	}
	if a.Success != b.Success {
		r.add("success", KindValueChanged, a.Success, b.Success, SeverityCritical)
	}

	drift := a.ResponseTimeMs - b.ResponseTimeMs
	if drift < 0 {
		drift = -drift
	}
	if a.ResponseTimeMs > 0 && drift > a.ResponseTimeMs*performanceDriftRatio {
		r.add("response_time_ms", KindPerformanceChange, a.ResponseTimeMs, b.ResponseTimeMs, SeverityWarning)
	}

	// status code, success flag and timing count as compared fields too.
	r.TotalFieldsCompared = countFields(a.Body, nil) + 3
	r.finalize()
	return r
}

func (c *Comparator) deepCompare(a, b any, r *Result, path string) {
	if a == nil && b == nil {
		return
	}
	if a == nil || b == nil {
		r.add(path, KindNullChanged, a, b, SeverityWarning)
		return
	}

	ta, tb := typeName(a), typeName(b)
	if ta != tb {
		// No descent below a type mismatch: everything underneath would
		// be a meaningless cross-type difference.
		r.add(path, KindTypeChanged, ta, tb, SeverityWarning)
		return
	}

	switch ta {
	case "object":
		c.compareObjects(asObject(a), asObject(b), r, path)
	case "array":
		c.compareArrays(asArray(a), asArray(b), r, path)
	case "number":
		na, _ := asNumber(a)
		nb, _ := asNumber(b)
		d := na - nb
		if d < 0 {
			d = -d
		}
		if d > c.tolerance {
			r.add(path, KindValueChanged, a, b, SeverityInfo)
		}
	case "string":
		sa, sb := a.(string), b.(string)
		if c.caseFold {
			sa, sb = strings.ToLower(sa), strings.ToLower(sb)
		}
		if sa != sb {
			// Whitespace-only drift is noise, not a regression.
			severity := SeverityWarning
			if strings.TrimSpace(sa) == strings.TrimSpace(sb) {
				severity = SeverityInfo
			}
			r.add(path, KindValueChanged, sa, sb, severity)
		}
	default:
		if !reflect.DeepEqual(a, b) {
			r.add(path, KindValueChanged, a, b, SeverityInfo)
		}
	}
}

func (c *Comparator) compareObjects(a, b map[string]any, r *Result, path string) {
	inA := make([]string, 0, len(a))
	for k := range a {
		if _, skip := c.ignore[k]; skip {
			continue
		}
		if _, ok := b[k]; !ok {
			inA = append(inA, k)
		}
	}
	sort.Strings(inA)
	for _, k := range inA {
		r.add(path+"."+k, KindKeyRemoved, a[k], nil, SeverityWarning)
	}

	inB := make([]string, 0, len(b))
	for k := range b {
		if _, skip := c.ignore[k]; skip {
			continue
		}
		if _, ok := a[k]; !ok {
			inB = append(inB, k)
		}
	}
	sort.Strings(inB)
	for _, k := range inB {
		r.add(path+"."+k, KindKeyAdded, nil, b[k], SeverityInfo)
	}

	shared := make([]string, 0, len(a))
	for k := range a {
		if _, skip := c.ignore[k]; skip {
			continue
		}
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	for _, k := range shared {
		c.deepCompare(a[k], b[k], r, path+"."+k)
	}
}

func (c *Comparator) compareArrays(a, b []any, r *Result, path string) {
	if len(a) != len(b) {
		r.add(path+".length", KindLengthChanged, len(a), len(b), SeverityWarning)
	}

	// Strictly index-aligned up to the shorter length; no LCS matching.
	min := len(a)
	if len(b) < min {
		min = len(b)
	}
	for i := 0; i < min; i++ {
		c.deepCompare(a[i], b[i], r, fmt.Sprintf("%s[%d]", path, i))
	}

	for i := min; i < len(a); i++ {
		r.add(fmt.Sprintf("%s[%d]", path, i), KindItemRemoved, a[i], nil, SeverityInfo)
	}
	for i := min; i < len(b); i++ {
		r.add(fmt.Sprintf("%s[%d]", path, i), KindItemAdded, nil, b[i], SeverityInfo)
	}
}

// typeName buckets a Go value into its JSON type class. All numeric kinds
// collapse into "number": JSON has a single number type, so int-vs-float
// at the same path is a value question, not a type change.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := asNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asArray(v any) []any {
	s, _ := v.([]any)
	return s
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
