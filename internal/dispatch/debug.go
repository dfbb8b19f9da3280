package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxBodyLogSize limits bodies written by the debug logger.
const maxBodyLogSize = 1024

// DebugLogger writes wire-level request/response detail in verbose mode.
// A nil *DebugLogger is a no-op, so call sites never need to guard.
type DebugLogger struct {
	out io.Writer
	mu  sync.Mutex
}

func NewDebugLogger(out io.Writer) *DebugLogger {
	return &DebugLogger{out: out}
}

func (d *DebugLogger) LogRequest(req *http.Request, body []byte) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\n>>> REQUEST %s %s\n", req.Method, req.URL.String()))
	for name, values := range req.Header {
		buf.WriteString(fmt.Sprintf("  %s: %s\n", name, strings.Join(values, ", ")))
	}
	if len(body) > 0 {
		buf.WriteString(fmt.Sprintf("  Body: %s\n", truncateBody(body)))
	}
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogResponse(resp *http.Response, body []byte, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("<<< RESPONSE %s (%s)\n", resp.Status, elapsed.Round(time.Millisecond)))
	if len(body) > 0 {
		buf.WriteString(fmt.Sprintf("  Body: %s\n", truncateBody(body)))
	}
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogError(url string, err error, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "<<< ERROR %s after %s: %v\n", url, elapsed.Round(time.Millisecond), err)
}

func truncateBody(body []byte) string {
	if len(body) <= maxBodyLogSize {
		return string(body)
	}
	return string(body[:maxBodyLogSize]) + "... (truncated)"
}
