package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"apidiff/internal/admit"
	"apidiff/internal/breaker"
	"apidiff/internal/config"
	"apidiff/internal/core"
	"apidiff/internal/logging"
	"apidiff/internal/retry"
	"apidiff/internal/template"
)

// healthCheckTimeout is the fixed deadline for the lightweight probe; it
// bypasses the configured request timeout and all resilience layers.
const healthCheckTimeout = 5 * time.Second

// Dispatcher sends requests through the resilience stack: breaker check,
// admission slot, retry loop with backoff. One Dispatcher is shared by all
// concurrent sends of a run; the breaker is its only cross-request state.
type Dispatcher struct {
	cfg       config.APIConfig
	transport Transport
	breaker   *breaker.Breaker
	throttler *admit.Throttler
	policy    retry.Policy
	retryable map[int]bool
	logger    *slog.Logger
	observer  func(core.Outcome)
}

// SetObserver registers a callback invoked for every outcome produced by
// SendBatch, as it completes. Must be set before dispatching starts.
func (d *Dispatcher) SetObserver(fn func(core.Outcome)) {
	d.observer = fn
}

func (d *Dispatcher) observe(out core.Outcome) {
	if d.observer != nil {
		d.observer(out)
	}
}

// New wires a Dispatcher. A nil logger discards log output.
func New(cfg config.APIConfig, transport Transport, br *breaker.Breaker, th *admit.Throttler, policy retry.Policy, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	retryable := make(map[int]bool, len(cfg.RetryableStatuses))
	for _, s := range cfg.RetryableStatuses {
		retryable[s] = true
	}
	return &Dispatcher{
		cfg:       cfg,
		transport: transport,
		breaker:   br,
		throttler: th,
		policy:    policy,
		retryable: retryable,
		logger:    logger,
	}
}

// Send dispatches one request and always returns a terminal Outcome;
// failures are classified, never propagated as errors.
func (d *Dispatcher) Send(ctx context.Context, req core.Request) core.Outcome {
	log := d.logger.With("request_id", req.ID, "correlation_id", req.CorrelationID)

	if !d.breaker.Allow() {
		log.Warn("request rejected", "reason", "circuit open")
		return d.failed(req, 0, 0, &core.DispatchError{Kind: core.KindCircuitOpen})
	}

	payload, err := json.Marshal(req.Body)
	if err != nil {
		return d.failed(req, 0, 0, &core.DispatchError{Kind: core.KindUnexpected, Cause: err})
	}

	headers, err := d.headers(req)
	if err != nil {
		return d.failed(req, 0, 0, &core.DispatchError{Kind: core.KindUnexpected, Cause: err})
	}

	if err := d.throttler.Acquire(ctx); err != nil {
		return d.failed(req, 0, 0, &core.DispatchError{Kind: core.KindUnexpected, Cause: err})
	}
	defer d.throttler.Release()

	wire := &WireRequest{
		Method:  http.MethodPost,
		URL:     d.cfg.URL,
		Host:    d.cfg.Host,
		Headers: headers,
		Body:    payload,
		Timeout: d.cfg.Timeout,
	}

	start := time.Now()
	var lastErr *core.DispatchError
	attempts := 0

	for attempt := 0; attempt < d.policy.Attempts(); attempt++ {
		if attempt > 0 {
			delay := d.policy.Delay(attempt)
			select {
			case <-ctx.Done():
				lastErr = classify(ctx.Err())
				attempts = attempt
				return d.terminalFailure(req, log, attempts, time.Since(start), lastErr)
			case <-time.After(delay):
			}
		}
		attempts = attempt + 1

		resp, err := d.transport.Execute(ctx, wire)
		if err != nil {
			lastErr = classify(err)
			log.Warn("attempt failed",
				"method", wire.Method,
				"url", wire.URL,
				"attempt", attempts,
				"error_kind", string(lastErr.Kind),
				"error", err.Error(),
			)
			if !lastErr.Retryable() {
				break
			}
			continue
		}

		if d.retryable[resp.StatusCode] {
			lastErr = &core.DispatchError{Kind: core.KindServerError, Status: resp.StatusCode}
			log.Warn("attempt failed",
				"method", wire.Method,
				"url", wire.URL,
				"status", resp.StatusCode,
				"attempt", attempts,
				"elapsed_ms", resp.Elapsed.Milliseconds(),
			)
			continue
		}

		// Terminal response: the target answered, even if with a
		// non-2xx status, so the breaker streak resets.
		d.breaker.RecordSuccess()

		log.Info("request completed",
			"method", wire.Method,
			"url", wire.URL,
			"status", resp.StatusCode,
			"attempt", attempts,
			"elapsed_ms", resp.Elapsed.Milliseconds(),
		)

		return core.Outcome{
			RequestID:      req.ID,
			Success:        resp.StatusCode >= 200 && resp.StatusCode < 300,
			StatusCode:     resp.StatusCode,
			Body:           decodeBody(resp.Body),
			ResponseTimeMs: float64(resp.Elapsed) / float64(time.Millisecond),
			Attempts:       attempts,
		}
	}

	return d.terminalFailure(req, log, attempts, time.Since(start), lastErr)
}

// terminalFailure records the breaker failure and builds the outcome for
// an exhausted or non-retryable error.
func (d *Dispatcher) terminalFailure(req core.Request, log *slog.Logger, attempts int, elapsed time.Duration, derr *core.DispatchError) core.Outcome {
	if derr == nil {
		derr = &core.DispatchError{Kind: core.KindUnexpected, Cause: errors.New("all attempts failed")}
	}
	if opened := d.breaker.RecordFailure(); opened {
		log.Error("circuit breaker opened", "url", d.cfg.URL)
	}
	log.Error("request failed",
		"url", d.cfg.URL,
		"attempts", attempts,
		"error_kind", string(derr.Kind),
		"error", derr.Error(),
	)
	return d.failed(req, attempts, elapsed, derr)
}

// failed builds an Outcome for an error without touching the breaker.
func (d *Dispatcher) failed(req core.Request, attempts int, elapsed time.Duration, derr *core.DispatchError) core.Outcome {
	out := core.Outcome{
		RequestID:      req.ID,
		Success:        false,
		ErrorKind:      derr.Kind,
		Error:          derr.Error(),
		ResponseTimeMs: float64(elapsed) / float64(time.Millisecond),
		Attempts:       attempts,
	}
	if derr.Kind == core.KindServerError {
		out.StatusCode = derr.Status
	}
	return out
}

// headers resolves placeholder values in the configured headers.
// ${request_id} and ${correlation_id} are bound per request so auth and
// tracing headers can carry request identity; ${env:VAR} and the
// template functions work as in body templates.
func (d *Dispatcher) headers(req core.Request) (map[string]string, error) {
	vars := core.NewVariables()
	vars.Set("request_id", req.ID)
	vars.Set("correlation_id", req.CorrelationID)
	headers, err := template.SubstituteMap(d.cfg.Headers, vars)
	if err != nil {
		return nil, fmt.Errorf("resolving headers: %w", err)
	}
	return headers, nil
}

// HealthCheck issues one lightweight probe with a short fixed timeout,
// short-circuiting retry, breaker and throttle. Returns false on any
// failure including timeout.
func (d *Dispatcher) HealthCheck(ctx context.Context) bool {
	headers, err := d.headers(core.Request{})
	if err != nil {
		return false
	}

	wire := &WireRequest{
		Method:  http.MethodGet,
		URL:     healthURL(d.cfg.URL),
		Host:    d.cfg.Host,
		Headers: headers,
		Timeout: healthCheckTimeout,
	}

	resp, err := d.transport.Execute(ctx, wire)
	if err != nil {
		return false
	}
	// Only a 2xx answer counts; a redirecting endpoint is not healthy.
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// healthURL derives the probe endpoint from the decisioning URL.
func healthURL(apiURL string) string {
	return strings.TrimSuffix(apiURL, "/") + "/health"
}

// decodeBody parses a response body as JSON; non-JSON bodies are kept as
// raw strings so the outcome is still comparable and reportable.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// classify maps a transport error into the dispatch taxonomy.
func classify(err error) *core.DispatchError {
	var derr *core.DispatchError
	if errors.As(err, &derr) {
		return derr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.DispatchError{Kind: core.KindTimeout, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &core.DispatchError{Kind: core.KindTimeout, Cause: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &core.DispatchError{Kind: core.KindConnection, Cause: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &core.DispatchError{Kind: core.KindConnection, Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &core.DispatchError{Kind: core.KindConnection, Cause: err}
	}

	return &core.DispatchError{Kind: core.KindUnexpected, Cause: err}
}
