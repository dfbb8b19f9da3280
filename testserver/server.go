// Package testserver provides a mock decisioning API for exercising the
// dispatcher end to end: deterministic decisions plus endpoints that
// simulate slow, failing and flaky upstreams.
package testserver

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Server is a mock decisioning API.
type Server struct {
	mux *http.ServeMux

	mu       sync.Mutex
	attempts map[string]int // per-application-id attempt counts for /flaky
}

// NewServer creates a mock server with all endpoints configured.
func NewServer() *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		attempts: make(map[string]int),
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("/decision", s.handleDecision)
	s.mux.HandleFunc("/decision/health", s.handleHealth)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/status/", s.handleStatus)
	s.mux.HandleFunc("/delay/", s.handleDelay)
	s.mux.HandleFunc("/flaky", s.handleFlaky)
	s.mux.HandleFunc("/flaky/health", s.handleHealth)
}

type application struct {
	ApplicationID string `json:"application_id"`
}

// handleDecision returns a synthetic decision derived deterministically
// from the application id, so repeated runs over the same ids produce
// identical baselines.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	app, ok := readApplication(w, r)
	if !ok {
		return
	}

	writeDecision(w, app.ApplicationID)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleStatus returns the specified HTTP status code.
// Example: POST /status/503 returns 503 Service Unavailable
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/status/")
	code, err := strconv.Atoi(path)
	if err != nil || code < 100 || code > 599 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
}

// handleDelay waits for the specified duration before answering like
// /decision. Example: POST /delay/100 waits 100ms
func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/delay/")
	ms, err := strconv.Atoi(path)
	if err != nil || ms < 0 {
		http.Error(w, "invalid delay", http.StatusBadRequest)
		return
	}

	app, ok := readApplication(w, r)
	if !ok {
		return
	}

	time.Sleep(time.Duration(ms) * time.Millisecond)
	writeDecision(w, app.ApplicationID)
}

// handleFlaky fails the first N attempts per application id with 503,
// then answers like /decision. N comes from ?fails=N, default 2.
// Exercises the retry path end to end.
func (s *Server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	fails := 2
	if q := r.URL.Query().Get("fails"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			http.Error(w, "invalid fails", http.StatusBadRequest)
			return
		}
		fails = n
	}

	app, ok := readApplication(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	s.attempts[app.ApplicationID]++
	attempt := s.attempts[app.ApplicationID]
	s.mu.Unlock()

	if attempt <= fails {
		http.Error(w, "simulated upstream failure", http.StatusServiceUnavailable)
		return
	}

	writeDecision(w, app.ApplicationID)
}

// Reset clears per-application flaky state between runs.
func (s *Server) Reset() {
	s.mu.Lock()
	s.attempts = make(map[string]int)
	s.mu.Unlock()
}

func readApplication(w http.ResponseWriter, r *http.Request) (application, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return application{}, false
	}

	var app application
	if err := json.Unmarshal(body, &app); err != nil || app.ApplicationID == "" {
		http.Error(w, `{"error":"application_id is required"}`, http.StatusBadRequest)
		return application{}, false
	}
	return app, true
}

func writeDecision(w http.ResponseWriter, applicationID string) {
	score := scoreFor(applicationID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"application_id": applicationID,
		"request_id":     uuid.NewString(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"decision": map[string]any{
			"status":  statusFor(score),
			"score":   score,
			"reasons": reasonsFor(score),
		},
	})
}

// scoreFor maps an application id into the 300-850 score range.
func scoreFor(applicationID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(applicationID))
	return 300 + int(h.Sum32()%551)
}

func statusFor(score int) string {
	switch {
	case score >= 680:
		return "approved"
	case score >= 580:
		return "referred"
	default:
		return "declined"
	}
}

func reasonsFor(score int) []string {
	switch {
	case score >= 680:
		return []string{}
	case score >= 580:
		return []string{"manual review required"}
	default:
		return []string{"score below cutoff"}
	}
}
