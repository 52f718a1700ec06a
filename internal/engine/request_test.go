package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nixlim/grouptop/internal/period"
)

var testNow = time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)

func validQuery() Query {
	return Query{
		ReportID:    "rpt-1",
		Metrics:     []string{"visits"},
		GroupBy:     []string{"country"},
		Period:      "7d",
		Granularity: "day",
	}
}

func TestBuildRequest_Body(t *testing.T) {
	q := validQuery()
	q.SortBy = "visits"
	q.SortOrder = "desc"

	req, err := BuildRequest(q, testNow)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"metrics":["visits"],"groupBy":["country"],"timeRange":{"start":"2026-02-10T12:00:00.000Z","end":"2026-02-17T12:00:00.000Z"},"granularity":"day","sortBy":"visits","sortOrder":"desc"}`
	if string(data) != want {
		t.Errorf("body =\n%s\nwant\n%s", data, want)
	}
}

func TestBuildRequest_OptionalFieldsOmitted(t *testing.T) {
	q := validQuery()
	q.Metrics = nil

	req, err := BuildRequest(q, testNow)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	data, _ := json.Marshal(req)
	_ = json.Unmarshal(data, &raw)
	for _, k := range []string{"metrics", "sortBy", "sortOrder"} {
		if _, ok := raw[k]; ok {
			t.Errorf("%s should be omitted, body %s", k, data)
		}
	}
}

func TestBuildRequest_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Query)
		want   error
	}{
		{"empty groupBy", func(q *Query) { q.GroupBy = nil }, ErrEmptyGroupBy},
		{"blank groupBy entry", func(q *Query) { q.GroupBy = []string{"country", ""} }, ErrEmptyGroupBy},
		{"bad granularity", func(q *Query) { q.Granularity = "fortnight" }, period.ErrInvalidGranularity},
		{"bad period", func(q *Query) { q.Period = "custom:nope" }, period.ErrInvalidPeriod},
		{"bad sort order", func(q *Query) { q.SortBy = "visits"; q.SortOrder = "up" }, ErrInvalidSortOrder},
		{"order without column", func(q *Query) { q.SortOrder = "asc" }, ErrInvalidSortOrder},
		{"missing report", func(q *Query) { q.ReportID = "" }, ErrMissingReportID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.mutate(&q)
			_, err := BuildRequest(q, testNow)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !IsInputError(err) {
				t.Errorf("IsInputError(%v) = false", err)
			}
		})
	}
}

func TestBuildRequest_RealtimeNeedsNoReport(t *testing.T) {
	q := validQuery()
	q.ReportID = ""
	q.Realtime = true
	if _, err := BuildRequest(q, testNow); err != nil {
		t.Errorf("realtime query: %v", err)
	}
	if Path(q) != "/realtime/flat-groups" {
		t.Errorf("Path = %q", Path(q))
	}
}

func TestBuildRequest_UnknownUnitIsEmptyRange(t *testing.T) {
	q := validQuery()
	q.Period = "3y"
	req, err := BuildRequest(q, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !req.Range.Empty() {
		t.Error("unknown unit should produce an empty range")
	}
	if req.TimeRange.Start != req.TimeRange.End {
		t.Errorf("timeRange = %+v", req.TimeRange)
	}
}
