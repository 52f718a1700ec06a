package storage

import (
	"errors"
	"time"

	"github.com/nixlim/grouptop/internal/engine"
	"github.com/nixlim/grouptop/internal/grouptree"
	"github.com/nixlim/grouptop/internal/report"
)

// NewFetchRecord describes the outcome of fetching q. resp may be the zero
// value when the request was rejected before it was sent.
func NewFetchRecord(q engine.Query, resp engine.Response, started time.Time, err error) FetchRecord {
	rec := FetchRecord{
		RequestID:   resp.RequestID,
		ReportID:    q.ReportID,
		Realtime:    q.Realtime,
		Period:      q.Period,
		Granularity: q.Granularity,
		GroupBy:     q.GroupBy,
		StartedAt:   started,
		Duration:    resp.Duration,
		Rows:        len(resp.Rows),
		Attempts:    resp.Attempts,
		Status:      resp.Status,
		Outcome:     OutcomeOK,
	}
	if q.Realtime {
		rec.ReportID = "realtime"
	}
	if err == nil {
		return rec
	}

	rec.ErrorKind = report.Classify(err).String()
	rec.Error = err.Error()
	if errors.Is(err, grouptree.ErrMalformedTree) {
		rec.Outcome = OutcomeMalformed
	} else {
		rec.Outcome = OutcomeError
	}
	return rec
}

// Stale marks a record whose result arrived after a newer request was issued.
func (r FetchRecord) Stale() FetchRecord {
	r.Outcome = OutcomeStale
	return r
}
