package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Exchange is one request/response round trip, including retries.
type Exchange struct {
	RequestID string
	Path      string
	Request   Request
	Status    int
	Rows      int
	Attempts  int
	Duration  time.Duration
	Err       error
}

// Logger provides structured debug logging of engine traffic.
// Implementations must be safe for concurrent use.
type Logger interface {
	LogExchange(Exchange)
}

// NopLogger discards all log output. This is the default when debug logging
// is not enabled.
type NopLogger struct{}

// LogExchange is a no-op.
func (NopLogger) LogExchange(Exchange) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Timestamp  string  `json:"ts"`
	RequestID  string  `json:"request_id"`
	Path       string  `json:"path"`
	Request    Request `json:"request"`
	Status     int     `json:"status,omitempty"`
	Rows       int     `json:"rows"`
	Attempts   int     `json:"attempts"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
	Empty      bool    `json:"empty_range,omitempty"`
}

// FileLogger writes one JSON object per exchange (JSONL).
type FileLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewFileLogger creates a FileLogger that writes to the given writer.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, now: time.Now}
}

// LogExchange writes a JSON line for x.
func (l *FileLogger) LogExchange(x Exchange) {
	entry := logEntry{
		Timestamp:  l.now().UTC().Format(time.RFC3339Nano),
		RequestID:  x.RequestID,
		Path:       x.Path,
		Request:    x.Request,
		Status:     x.Status,
		Rows:       x.Rows,
		Attempts:   x.Attempts,
		DurationMS: float64(x.Duration.Microseconds()) / 1000,
		Empty:      x.Request.Range.Empty() && !x.Request.Range.Start.IsZero(),
	}
	if x.Err != nil {
		entry.Error = x.Err.Error()
	}

	// Serialisation errors are dropped so logging never disrupts a fetch.
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
