package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nixlim/grouptop/internal/period"
)

type dateLayouts struct {
	date     string
	dateTime string
}

var locales = map[string]dateLayouts{
	"":      {"2006-01-02", "2006-01-02 15:04"},
	"iso":   {"2006-01-02", "2006-01-02 15:04"},
	"en-US": {"Jan 2, 2006", "Jan 2, 2006 3:04 PM"},
	"en-GB": {"2 Jan 2006", "2 Jan 2006 15:04"},
	"de-DE": {"02.01.2006", "02.01.2006 15:04"},
}

// Locales returns the supported locale names.
func Locales() []string {
	return []string{"iso", "en-US", "en-GB", "de-DE"}
}

func applyDate(value any, rule Rule, now time.Time) Result {
	res := Result{Text: Text(value), Style: rule.DefaultStyle}

	ts, err := ParseTimestamp(value)
	if err != nil {
		res.Err = err
		return res
	}

	g := period.Granularity(rule.Granularity)
	if rule.ShowAsSpan {
		res.Text = span(ts, g, now)
		return res
	}

	layouts, ok := locales[rule.Locale]
	if !ok {
		layouts = locales[""]
	}
	ts = ts.UTC()
	if g.AtLeastDay() {
		res.Text = ts.Format(layouts.date)
	} else {
		res.Text = ts.Format(layouts.dateTime)
	}
	return res
}

// span describes the bucket starting at ts relative to now. Buckets without a
// known width collapse to a single point.
func span(ts time.Time, g period.Granularity, now time.Time) string {
	from := humanize.RelTime(ts, now, "ago", "from now")
	w := g.BucketWidth()
	if w == 0 {
		return from
	}
	to := humanize.RelTime(ts.Add(w), now, "ago", "from now")
	if to == from {
		return from
	}
	return from + " to " + to
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 strings, date or date-time strings and
// unix epochs in seconds or milliseconds.
func ParseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if n, err := json.Number(s).Float64(); err == nil && finite(n) {
			return fromEpoch(n), nil
		}
	default:
		if n, ok := Number(v); ok && finite(n) {
			return fromEpoch(n), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrBadTimestamp, v)
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// Values above 1e11 are taken to be milliseconds.
func fromEpoch(n float64) time.Time {
	if math.Abs(n) > 1e11 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
