// Package dispatch sends decisioning requests reliably: admission
// control, retry with backoff, circuit breaking and batch orchestration.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 * 1024 * 1024 // 10MB

// WireRequest is one network call, fully rendered.
type WireRequest struct {
	Method  string
	URL     string
	Host    string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// WireResponse is the raw result of one network call.
type WireResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration
}

// Transport is the seam between the dispatcher and the HTTP collaborator.
// Tests substitute a scripted implementation.
type Transport interface {
	Execute(ctx context.Context, req *WireRequest) (*WireResponse, error)
}

// HTTPTransport executes wire requests over net/http with connection
// reuse.
type HTTPTransport struct {
	client *http.Client
	debug  *DebugLogger
}

// NewHTTPTransport creates an HTTPTransport. The per-request timeout is
// applied via context in Execute, not on the client, so health probes can
// use their own deadline. debug may be nil.
func NewHTTPTransport(insecureSkipTLS bool, debug *DebugLogger) *HTTPTransport {
	transport := http.DefaultTransport
	if insecureSkipTLS {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}
	return &HTTPTransport{
		client: &http.Client{Transport: transport},
		debug:  debug,
	}
}

func (t *HTTPTransport) Execute(ctx context.Context, req *WireRequest) (*WireResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}

	t.debug.LogRequest(httpReq, req.Body)

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		t.debug.LogError(req.URL, err, elapsed)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	t.debug.LogResponse(resp, body, elapsed)

	return &WireResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}
