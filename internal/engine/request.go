// Package engine talks to the external analytics engine: it composes
// flat-groups aggregation requests and decodes the grouped row responses.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/nixlim/grouptop/internal/period"
)

var (
	// ErrEmptyGroupBy is returned when a query names no grouping field.
	ErrEmptyGroupBy = errors.New("groupBy must name at least one field")
	// ErrInvalidSortOrder is returned for sort orders other than asc and desc.
	ErrInvalidSortOrder = errors.New("sortOrder must be asc or desc")
	// ErrMissingReportID is returned for historical queries without a report.
	ErrMissingReportID = errors.New("report id is required")
)

// Query is the user-facing description of one aggregation.
type Query struct {
	ReportID    string
	Metrics     []string
	GroupBy     []string
	Period      string
	Granularity string
	SortBy      string
	SortOrder   string

	// Realtime selects the live data path. The report id is not part of the
	// realtime URL.
	Realtime bool
}

// TimeRange is the wire form of a resolved period.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Request is the JSON body posted to the engine.
type Request struct {
	Metrics     []string  `json:"metrics,omitempty"`
	GroupBy     []string  `json:"groupBy"`
	TimeRange   TimeRange `json:"timeRange"`
	Granularity string    `json:"granularity"`
	SortBy      string    `json:"sortBy,omitempty"`
	SortOrder   string    `json:"sortOrder,omitempty"`

	// Range is the resolved interval. An empty range means no data is
	// expected for this request.
	Range period.Range `json:"-"`
}

// BuildRequest validates q and resolves its period against now. All input
// errors are reported before anything is sent.
func BuildRequest(q Query, now time.Time) (Request, error) {
	if !q.Realtime && q.ReportID == "" {
		return Request{}, ErrMissingReportID
	}
	if len(q.GroupBy) == 0 {
		return Request{}, ErrEmptyGroupBy
	}
	for i, f := range q.GroupBy {
		if f == "" {
			return Request{}, fmt.Errorf("%w: entry %d is empty", ErrEmptyGroupBy, i)
		}
	}

	g, err := period.ValidateGranularity(q.Granularity)
	if err != nil {
		return Request{}, err
	}

	rng, err := period.Resolve(q.Period, now)
	if err != nil {
		return Request{}, err
	}

	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrInvalidSortOrder, q.SortOrder)
	}
	if q.SortOrder != "" && q.SortBy == "" {
		return Request{}, fmt.Errorf("%w: sortOrder without sortBy", ErrInvalidSortOrder)
	}

	start, end := rng.ISO()
	req := Request{
		GroupBy:     append([]string(nil), q.GroupBy...),
		TimeRange:   TimeRange{Start: start, End: end},
		Granularity: string(g),
		SortBy:      q.SortBy,
		SortOrder:   q.SortOrder,
		Range:       rng,
	}
	if len(q.Metrics) > 0 {
		req.Metrics = append([]string(nil), q.Metrics...)
	}
	return req, nil
}

// IsInputError reports whether err was raised while validating a query.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyGroupBy) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrMissingReportID) ||
		errors.Is(err, period.ErrInvalidPeriod) ||
		errors.Is(err, period.ErrInvalidGranularity)
}
