// Package storage keeps a log of engine fetches: one record per request with
// its outcome and latency, rolled up into per-day summaries for the history
// view. SQLite is used when available; otherwise a bounded in-memory ring
// holds recent records.
package storage

import "time"

// Fetch outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
	OutcomeStale     = "stale"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

// FetchRecord describes one completed engine request.
type FetchRecord struct {
	RequestID   string
	ReportID    string
	Realtime    bool
	Period      string
	Granularity string
	GroupBy     []string
	StartedAt   time.Time
	Duration    time.Duration
	Rows        int
	Attempts    int
	Status      int
	Outcome     string
	ErrorKind   string
	Error       string
}

// Failed reports whether the record counts as a failure.
func (r FetchRecord) Failed() bool {
	return r.Outcome == OutcomeError || r.Outcome == OutcomeMalformed
}

// DailySummary aggregates one calendar day (UTC) of fetches.
type DailySummary struct {
	Date         string
	Fetches      int
	Failures     int
	Rows         int64
	AvgLatencyMS float64
	Reports      int
}

// Store is the fetch log.
type Store interface {
	RecordFetch(FetchRecord)
	RecentFetches(limit int) []FetchRecord
	QueryDailySummaries(days int) []DailySummary
	DroppedWrites() int64
	Close() error
}
