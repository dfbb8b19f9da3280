// Package core defines the fundamental value types shared across the
// dispatch and comparison engines.
package core

// Request is a single decisioning API request to dispatch. The body is an
// opaque JSON-like tree (maps, slices, scalars, nil); the engine never
// inspects business fields. A Request is immutable once built and remains
// owned by the caller.
type Request struct {
	// ID is the caller-assigned identifier, typically the allocated
	// application ID.
	ID string `json:"id"`
	// CorrelationID ties log records and outcomes to one request.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Body is the JSON payload to send.
	Body any `json:"body"`
}

// Outcome records the terminal result of dispatching one Request.
// It is created once by the dispatcher and never mutated afterward, which
// makes it safe to hand to concurrent report writers.
type Outcome struct {
	RequestID      string    `json:"request_id"`
	Success        bool      `json:"success"`
	StatusCode     int       `json:"status_code,omitempty"`
	Body           any       `json:"body,omitempty"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempts       int       `json:"attempt_count"`
}
