package testserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postJSON(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeDecision(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return payload
}

func TestDecision_Deterministic(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	first := decodeDecision(t, postJSON(t, ts, "/decision", `{"application_id": "1000000"}`))
	second := decodeDecision(t, postJSON(t, ts, "/decision", `{"application_id": "1000000"}`))

	d1 := first["decision"].(map[string]any)
	d2 := second["decision"].(map[string]any)
	if d1["score"] != d2["score"] {
		t.Errorf("same application id must score identically: %v vs %v", d1["score"], d2["score"])
	}
	if d1["status"] != d2["status"] {
		t.Errorf("same application id must decide identically: %v vs %v", d1["status"], d2["status"])
	}
	if first["application_id"] != "1000000" {
		t.Errorf("expected echoed application id, got %v", first["application_id"])
	}
}

func TestDecision_MissingApplicationID(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	resp := postJSON(t, ts, "/decision", `{}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDecision_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/decision")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	for _, path := range []string{"/health", "/decision/health"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestStatus(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	resp := postJSON(t, ts, "/status/503", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/status/nope", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid code, got %d", resp.StatusCode)
	}
}

func TestDelay(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	payload := decodeDecision(t, postJSON(t, ts, "/delay/10", `{"application_id": "1000001"}`))
	if payload["application_id"] != "1000001" {
		t.Errorf("expected decision after delay, got %v", payload)
	}
}

func TestFlaky_FailsThenSucceeds(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	body := `{"application_id": "1000002"}`

	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts, "/flaky", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("attempt %d: expected 503, got %d", i+1, resp.StatusCode)
		}
	}

	resp := postJSON(t, ts, "/flaky", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attempt 3: expected 200, got %d", resp.StatusCode)
	}
	payload := decodeDecision(t, resp)
	if payload["application_id"] != "1000002" {
		t.Errorf("expected decision payload, got %v", payload)
	}
}

func TestFlaky_PerApplicationCounters(t *testing.T) {
	ts := httptest.NewServer(NewServer().Handler())
	defer ts.Close()

	// One application burning its failures must not affect another.
	resp := postJSON(t, ts, "/flaky?fails=1", `{"application_id": "a"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected first attempt for a to fail, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/flaky?fails=1", `{"application_id": "b"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected first attempt for b to fail, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/flaky?fails=1", `{"application_id": "a"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected second attempt for a to succeed, got %d", resp.StatusCode)
	}
}

func TestFlaky_Reset(t *testing.T) {
	srv := NewServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts, "/flaky?fails=1", `{"application_id": "x"}`)
	resp.Body.Close()

	srv.Reset()

	resp = postJSON(t, ts, "/flaky?fails=1", `{"application_id": "x"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected reset counters to fail again, got %d", resp.StatusCode)
	}
}

func TestScoreBands(t *testing.T) {
	if statusFor(700) != "approved" {
		t.Error("700 should approve")
	}
	if statusFor(600) != "referred" {
		t.Error("600 should refer")
	}
	if statusFor(500) != "declined" {
		t.Error("500 should decline")
	}
}
