package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const twoCountryBody = `[
	{"id":"DE","groupLevel":0,"parentPath":null,"isGroupRoot":true,"groupByField":"country","country":"DE","visits":30},
	{"id":"2026-02-16","groupLevel":1,"parentPath":["DE"],"isGroupRoot":false,"groupByField":null,"visits":10},
	{"id":"FR","groupLevel":0,"parentPath":null,"isGroupRoot":true,"groupByField":"country","country":"FR","visits":5}
]`

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	return NewClient(srv.URL, 5*time.Second, opts...)
}

func TestClient_FetchDecodesRows(t *testing.T) {
	var gotPath, gotAuth, gotID string
	var gotBody Request

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get(RequestIDHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, twoCountryBody)
	}, WithAPIKey("secret"))

	resp, err := c.Fetch(context.Background(), validQuery(), testNow)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotPath != "/reports/rpt-1/flat-groups" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotID == "" || gotID != resp.RequestID {
		t.Errorf("request id header %q, response id %q", gotID, resp.RequestID)
	}
	if gotBody.Granularity != "day" || gotBody.GroupBy[0] != "country" {
		t.Errorf("server saw body %+v", gotBody)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(resp.Rows))
	}
	if resp.Rows[1].Key() != "DE/2026-02-16" {
		t.Errorf("row 1 key = %q", resp.Rows[1].Key())
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d", resp.Attempts)
	}
}

func TestClient_NotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"no such report"}`)
	})

	_, err := c.Fetch(context.Background(), validQuery(), testNow)
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("error = %v, want ErrReportNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 retried: %d calls", calls.Load())
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"busy"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	resp, err := c.Fetch(context.Background(), validQuery(), testNow)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.Attempts)
	}
}

func TestClient_StatusErrorAfterRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"upstream down"}`)
	})

	resp, err := c.Fetch(context.Background(), validQuery(), testNow)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusBadGateway || se.Message != "upstream down" {
		t.Errorf("StatusError = %+v", se)
	}
	if resp.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.Attempts)
	}
}

func TestClient_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Fetch(context.Background(), validQuery(), testNow)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("400 retried: %d calls", calls.Load())
	}
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not":"an array"}`)
	})

	_, err := c.Fetch(context.Background(), validQuery(), testNow)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("error = %v, want *DecodeError", err)
	}
}

func TestClient_InputErrorSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	q := validQuery()
	q.GroupBy = nil
	if _, err := c.Fetch(context.Background(), q, testNow); !errors.Is(err, ErrEmptyGroupBy) {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 0 {
		t.Error("input error must not reach the engine")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Fetch(ctx, validQuery(), testNow); err == nil {
		t.Fatal("expected error from cancelled fetch")
	}
}
