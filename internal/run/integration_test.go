package run_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidiff/internal/admit"
	"apidiff/internal/breaker"
	"apidiff/internal/compare"
	"apidiff/internal/config"
	"apidiff/internal/dispatch"
	"apidiff/internal/generate"
	"apidiff/internal/retry"
	"apidiff/internal/run"
	"apidiff/testserver"
)

func newIntegrationRunner(t *testing.T, apiURL string, policy retry.Policy) *run.Runner {
	t.Helper()

	cfg := config.Default()
	cfg.API.URL = apiURL
	cfg.Execution.BatchSize = 4
	cfg.Report.DecisionPath = "$.decision.status"

	gen, err := generate.New(cfg.Data, t.TempDir())
	require.NoError(t, err)

	transport := dispatch.NewHTTPTransport(false, nil)
	d := dispatch.New(cfg.API, transport, breaker.New(5, time.Minute, nil), admit.New(10, 0), policy, nil)

	return run.New(cfg, d, gen, compare.New(compare.DefaultOptions()), nil, true)
}

// Record against the mock decisioning server, then verify a second run
// against that baseline over real HTTP. The mock's decisions are
// deterministic per application id; its request_id and timestamp fields
// vary per response and must be absorbed by the ignore list.
func TestIntegration_RecordThenVerify(t *testing.T) {
	ts := httptest.NewServer(testserver.NewServer().Handler())
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "baseline.json")
	policy := retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	recorder := newIntegrationRunner(t, ts.URL+"/decision", policy)
	recorded, err := recorder.Run(context.Background(), run.Options{Mode: run.ModeRecord, Count: 10, OutPath: out})
	require.NoError(t, err)
	require.Equal(t, 10, recorded.Metrics.SuccessCount)

	verifier := newIntegrationRunner(t, ts.URL+"/decision", policy)
	report, err := verifier.Run(context.Background(), run.Options{Mode: run.ModeVerify, BaselinePath: out})
	require.NoError(t, err)

	require.NotNil(t, report.Comparison)
	assert.Equal(t, 10, report.Comparison.Pairs)
	assert.Zero(t, report.Comparison.CriticalCount)
	assert.Zero(t, report.Comparison.ErrorCount)

	// Same ids produce the same decisions; any residual differences can
	// only be timing drift between the two local runs.
	for _, res := range report.Results {
		for _, diff := range res.Differences {
			assert.Equal(t, compare.KindPerformanceChange, diff.Kind,
				"unexpected structural difference: %s", diff)
		}
	}
}

// Ten requests in chunks of four against a target where the fourth and
// eighth application fail twice before succeeding: every outcome comes
// back successful and in order, and only the flaky two needed retries.
func TestIntegration_FlakyUpstreamRecovers(t *testing.T) {
	flaky := map[string]bool{"1000003": true, "1000007": true}
	var mu sync.Mutex
	attempts := make(map[string]int)

	mux := http.NewServeMux()
	mux.HandleFunc("/decision/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/decision", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ApplicationID string `json:"application_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		attempts[body.ApplicationID]++
		n := attempts[body.ApplicationID]
		mu.Unlock()

		if flaky[body.ApplicationID] && n <= 2 {
			http.Error(w, "transient failure", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"application_id": %q, "decision": {"status": "approved", "score": 720}}`, body.ApplicationID)
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	policy := retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	runner := newIntegrationRunner(t, ts.URL+"/decision", policy)

	report, err := runner.Run(context.Background(), run.Options{Mode: run.ModeRecord, Count: 10})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 10)
	for i, out := range report.Outcomes {
		assert.True(t, out.Success, "request %d should eventually succeed", i)
		assert.Equal(t, fmt.Sprintf("%d", 1000000+i), out.RequestID, "outcome %d out of order", i)
		if flaky[out.RequestID] {
			assert.Equal(t, 3, out.Attempts, "flaky request %d", i)
		} else {
			assert.Equal(t, 1, out.Attempts, "healthy request %d", i)
		}
	}
	assert.Equal(t, 10, report.Metrics.Decisions["approved"])
}
