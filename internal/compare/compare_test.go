package compare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidiff/internal/core"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestCompareJSON_Identical(t *testing.T) {
	c := New(DefaultOptions())

	values := []string{
		`null`,
		`true`,
		`42`,
		`"hello"`,
		`[1, 2, 3]`,
		`{"a": 1, "b": {"c": [true, null, "x"]}}`,
	}

	for _, s := range values {
		v := mustJSON(t, s)
		r := c.CompareJSON("identity", v, v)
		assert.True(t, r.AreEqual, "compare(x, x) must be empty for %s", s)
		assert.Empty(t, r.Differences)
	}
}

func TestCompareJSON_NullChanged(t *testing.T) {
	c := New(DefaultOptions())

	r := c.CompareJSON("null", mustJSON(t, `{"a": null}`), mustJSON(t, `{"a": 1}`))
	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, "root.a", d.Path)
	assert.Equal(t, KindNullChanged, d.Kind)
	assert.Equal(t, SeverityWarning, d.Severity)
}

func TestCompareJSON_TypeChangedStopsDescent(t *testing.T) {
	c := New(DefaultOptions())

	a := mustJSON(t, `{"a": {"deep": {"x": 1, "y": 2}}}`)
	b := mustJSON(t, `{"a": [1, 2, 3]}`)

	r := c.CompareJSON("types", a, b)
	require.Len(t, r.Differences, 1, "nothing below a type mismatch")
	d := r.Differences[0]
	assert.Equal(t, "root.a", d.Path)
	assert.Equal(t, KindTypeChanged, d.Kind)
	assert.Equal(t, "object", d.Old)
	assert.Equal(t, "array", d.New)
	assert.Equal(t, SeverityWarning, d.Severity)
}

func TestCompareJSON_KeyAddedRemoved(t *testing.T) {
	c := New(DefaultOptions())

	a := mustJSON(t, `{"gone": 1, "shared": 2}`)
	b := mustJSON(t, `{"shared": 2, "new": 3}`)

	r := c.CompareJSON("keys", a, b)
	require.Len(t, r.Differences, 2)

	assert.Equal(t, "root.gone", r.Differences[0].Path)
	assert.Equal(t, KindKeyRemoved, r.Differences[0].Kind)
	assert.Equal(t, SeverityWarning, r.Differences[0].Severity)
	assert.Nil(t, r.Differences[0].New)

	assert.Equal(t, "root.new", r.Differences[1].Path)
	assert.Equal(t, KindKeyAdded, r.Differences[1].Kind)
	assert.Equal(t, SeverityInfo, r.Differences[1].Severity)
	assert.Nil(t, r.Differences[1].Old)
}

func TestCompareJSON_IgnoreKeys(t *testing.T) {
	c := New(DefaultOptions())

	a := mustJSON(t, `{"value": 1, "timestamp": "2024-01-01", "request_id": "a"}`)
	b := mustJSON(t, `{"value": 1, "timestamp": "2024-06-01", "request_id": "b"}`)

	r := c.CompareJSON("ignored", a, b)
	assert.True(t, r.AreEqual, "volatile keys must not be compared")
}

func TestCompareJSON_NumericTolerance(t *testing.T) {
	c := New(DefaultOptions())

	r := c.CompareJSON("close", 1.0, 1.0009)
	assert.True(t, r.AreEqual, "within default tolerance 0.001")

	r = c.CompareJSON("far", 1.0, 1.002)
	require.Len(t, r.Differences, 1)
	assert.Equal(t, KindValueChanged, r.Differences[0].Kind)
	assert.Equal(t, SeverityInfo, r.Differences[0].Severity)
}

func TestCompareJSON_IntVsFloatIsNumeric(t *testing.T) {
	c := New(DefaultOptions())
	r := c.CompareJSON("numeric", 3, 3.0)
	assert.True(t, r.AreEqual, "int and float are one number type class")
}

func TestCompareJSON_StringSeverity(t *testing.T) {
	c := New(DefaultOptions())

	r := c.CompareJSON("ws", "approved ", "approved")
	require.Len(t, r.Differences, 1)
	assert.Equal(t, SeverityInfo, r.Differences[0].Severity, "whitespace-only drift is INFO")

	r = c.CompareJSON("real", "approved", "declined")
	require.Len(t, r.Differences, 1)
	assert.Equal(t, SeverityWarning, r.Differences[0].Severity)
}

func TestCompareJSON_CaseInsensitive(t *testing.T) {
	opts := DefaultOptions()
	opts.CaseSensitive = false
	c := New(opts)

	r := c.CompareJSON("case", "Approved", "APPROVED")
	assert.True(t, r.AreEqual)
}

func TestCompareJSON_ListLengthMismatch(t *testing.T) {
	c := New(DefaultOptions())

	r := c.CompareJSON("lists", mustJSON(t, `[1, 2, 3]`), mustJSON(t, `[1, 2]`))
	require.Len(t, r.Differences, 2)

	assert.Equal(t, "root.length", r.Differences[0].Path)
	assert.Equal(t, KindLengthChanged, r.Differences[0].Kind)
	assert.Equal(t, 3, r.Differences[0].Old)
	assert.Equal(t, 2, r.Differences[0].New)

	assert.Equal(t, "root[2]", r.Differences[1].Path)
	assert.Equal(t, KindItemRemoved, r.Differences[1].Kind)
}

func TestCompareJSON_ListItemAdded(t *testing.T) {
	c := New(DefaultOptions())

	r := c.CompareJSON("grow", mustJSON(t, `[1]`), mustJSON(t, `[1, 9, 8]`))

	kinds := r.ByKind()
	assert.Equal(t, 1, kinds[KindLengthChanged])
	assert.Equal(t, 2, kinds[KindItemAdded])
}

func TestCompareJSON_ListElementsStillComparedOnLengthMismatch(t *testing.T) {
	c := New(DefaultOptions())

	r := c.CompareJSON("both", mustJSON(t, `[1, 5, 3]`), mustJSON(t, `[1, 2]`))

	var changed []Difference
	for _, d := range r.Differences {
		if d.Kind == KindValueChanged {
			changed = append(changed, d)
		}
	}
	require.Len(t, changed, 1, "index 1 differs, index 0 does not")
	assert.Equal(t, "root[1]", changed[0].Path)
}

func TestCompareJSON_SymmetryOfDetection(t *testing.T) {
	c := New(DefaultOptions())

	a := mustJSON(t, `{"only_a": 1, "shared": "x", "list": [1, 2, 3]}`)
	b := mustJSON(t, `{"only_b": 2, "shared": "y", "list": [1, 2]}`)

	ab := c.CompareJSON("ab", a, b)
	ba := c.CompareJSON("ba", b, a)

	require.Equal(t, len(ab.Differences), len(ba.Differences))

	paths := func(r *Result) map[string]bool {
		m := make(map[string]bool)
		for _, d := range r.Differences {
			m[d.Path] = true
		}
		return m
	}
	assert.Equal(t, paths(ab), paths(ba), "same paths detected in both directions")

	swap := map[Kind]Kind{
		KindKeyAdded: KindKeyRemoved, KindKeyRemoved: KindKeyAdded,
		KindItemAdded: KindItemRemoved, KindItemRemoved: KindItemAdded,
	}
	byPath := make(map[string]Difference)
	for _, d := range ba.Differences {
		byPath[d.Path] = d
	}
	for _, d := range ab.Differences {
		rev := byPath[d.Path]
		if swapped, ok := swap[d.Kind]; ok {
			assert.Equal(t, swapped, rev.Kind, d.Path)
		} else {
			assert.Equal(t, d.Kind, rev.Kind, d.Path)
			assert.Equal(t, d.Old, rev.New, d.Path)
			assert.Equal(t, d.New, rev.Old, d.Path)
		}
	}
}

func TestCompareJSON_DeterministicOrder(t *testing.T) {
	c := New(DefaultOptions())

	a := mustJSON(t, `{"z": 1, "m": 2, "a": 3}`)
	b := mustJSON(t, `{"z": 9, "m": 8, "a": 7}`)

	first := c.CompareJSON("order", a, b)
	for i := 0; i < 5; i++ {
		again := c.CompareJSON("order", a, b)
		require.Equal(t, first.Differences, again.Differences)
	}

	assert.Equal(t, "root.a", first.Differences[0].Path)
	assert.Equal(t, "root.m", first.Differences[1].Path)
	assert.Equal(t, "root.z", first.Differences[2].Path)
}

func TestCompareJSON_NestedPaths(t *testing.T) {
	c := New(DefaultOptions())

	a := mustJSON(t, `{"decision": {"applicants": [{"score": 700}]}}`)
	b := mustJSON(t, `{"decision": {"applicants": [{"score": 650}]}}`)

	r := c.CompareJSON("nested", a, b)
	require.Len(t, r.Differences, 1)
	assert.Equal(t, "root.decision.applicants[0].score", r.Differences[0].Path)
}

func TestCompareOutcomes(t *testing.T) {
	c := New(DefaultOptions())

	a := core.Outcome{
		RequestID:      "1000001",
		Success:        true,
		StatusCode:     200,
		Body:           mustJSON(t, `{"decision": "approved"}`),
		ResponseTimeMs: 100,
	}
	b := core.Outcome{
		RequestID:      "1000001",
		Success:        false,
		StatusCode:     500,
		Body:           mustJSON(t, `{"decision": "approved"}`),
		ResponseTimeMs: 150,
	}

	r := c.CompareOutcomes(a, b)

	byPath := make(map[string]Difference)
	for _, d := range r.Differences {
		byPath[d.Path] = d
	}

	require.Contains(t, byPath, "status_code")
	assert.Equal(t, SeverityError, byPath["status_code"].Severity)

	require.Contains(t, byPath, "success")
	assert.Equal(t, SeverityCritical, byPath["success"].Severity)

	require.Contains(t, byPath, "response_time_ms")
	assert.Equal(t, KindPerformanceChange, byPath["response_time_ms"].Kind)
	assert.Equal(t, SeverityWarning, byPath["response_time_ms"].Severity)
}

func TestCompareOutcomes_SmallDriftNotFlagged(t *testing.T) {
	c := New(DefaultOptions())

	a := core.Outcome{RequestID: "a", Success: true, StatusCode: 200, ResponseTimeMs: 100}
	b := core.Outcome{RequestID: "b", Success: true, StatusCode: 200, ResponseTimeMs: 115}

	r := c.CompareOutcomes(a, b)
	assert.True(t, r.AreEqual, "15%% drift is under the 20%% threshold")
}

func TestResult_Similarity(t *testing.T) {
	r := &Result{TotalFieldsCompared: 10}
	r.finalize()
	assert.Equal(t, 100.0, r.Similarity())

	r.add("root.a", KindValueChanged, 1, 2, SeverityInfo)
	r.add("root.b", KindValueChanged, 3, 4, SeverityInfo)
	assert.InDelta(t, 80.0, r.Similarity(), 0.0001)

	empty := &Result{}
	assert.Equal(t, 100.0, empty.Similarity())
}

func TestResult_FormatText(t *testing.T) {
	c := New(DefaultOptions())
	r := c.CompareJSON("run", mustJSON(t, `{"a": 1}`), mustJSON(t, `{"a": 2}`))

	var buf core.MockWriter
	r.FormatText(&buf)

	out := buf.String()
	assert.Contains(t, out, "Comparison: run")
	assert.Contains(t, out, "root.a: VALUE_CHANGED (1 → 2) [INFO]")
}

func TestResult_JSONRoundTrip(t *testing.T) {
	c := New(DefaultOptions())
	r := c.CompareJSON("rt", mustJSON(t, `{"a": 1}`), mustJSON(t, `{"b": 1}`))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.Name, decoded.Name)
	assert.Len(t, decoded.Differences, len(r.Differences))
	assert.False(t, decoded.AreEqual)
}
