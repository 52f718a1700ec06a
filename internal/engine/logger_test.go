package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNopLogger_DoesNotPanic(t *testing.T) {
	var l NopLogger
	l.LogExchange(Exchange{RequestID: "r1", Err: errors.New("boom")})
}

func TestFileLogger_LogExchange(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)
	l.now = func() time.Time { return time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC) }

	req, err := BuildRequest(validQuery(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	l.LogExchange(Exchange{
		RequestID: "req-abc",
		Path:      "/reports/rpt-1/flat-groups",
		Request:   req,
		Status:    200,
		Rows:      12,
		Attempts:  2,
		Duration:  1500 * time.Microsecond,
	})

	var entry logEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, buf.String())
	}

	if entry.Timestamp != "2026-02-15T10:30:00Z" {
		t.Errorf("ts = %q", entry.Timestamp)
	}
	if entry.RequestID != "req-abc" || entry.Rows != 12 || entry.Attempts != 2 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.DurationMS != 1.5 {
		t.Errorf("duration_ms = %v", entry.DurationMS)
	}
	if entry.Request.Granularity != "day" {
		t.Errorf("request = %+v", entry.Request)
	}
	if entry.Error != "" {
		t.Errorf("unexpected error field %q", entry.Error)
	}
}

func TestFileLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)
	l.LogExchange(Exchange{RequestID: "r", Err: &StatusError{Code: 502}})

	if !strings.Contains(buf.String(), `"error":"engine returned 502 Bad Gateway"`) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.LogExchange(Exchange{RequestID: "r"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Fatalf("lines = %d, want 50", len(lines))
	}
	for i, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Errorf("line %d is not valid JSON: %s", i, line)
		}
	}
}
