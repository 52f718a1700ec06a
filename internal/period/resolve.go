// Package period turns period and granularity tokens from the report toolbar
// into absolute time ranges and validated bucket widths.
package period

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CustomPrefix marks an explicit "custom:<start>_<end>" period.
const CustomPrefix = "custom:"

// ErrInvalidPeriod is returned for period strings that cannot be resolved.
var ErrInvalidPeriod = errors.New("invalid period")

// Unit multipliers in milliseconds. A month is a fixed 30 days.
const (
	hourMS  int64 = 3_600_000
	dayMS   int64 = 86_400_000
	weekMS  int64 = 604_800_000
	monthMS int64 = 2_592_000_000
)

var unitMS = map[byte]int64{
	'h': hourMS,
	'd': dayMS,
	'w': weekMS,
	'm': monthMS,
}

// Range is an absolute [Start, End] interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range has zero width. Callers should expect no
// data for an empty range.
func (r Range) Empty() bool {
	return !r.End.After(r.Start)
}

// Width returns End - Start.
func (r Range) Width() time.Duration {
	return r.End.Sub(r.Start)
}

// ISO renders both bounds as RFC 3339 UTC strings with millisecond precision.
func (r Range) ISO() (start, end string) {
	return formatISO(r.Start), formatISO(r.End)
}

func formatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Resolve converts a period token into an absolute range relative to now.
//
// Accepted forms:
//   - "custom:<start>_<end>" with two RFC 3339 instants, returned verbatim
//   - "<n><unit>" with unit h, d, w or m
//
// An unknown unit yields a zero-width range at now rather than an error.
func Resolve(period string, now time.Time) (Range, error) {
	if strings.HasPrefix(period, CustomPrefix) {
		return resolveCustom(strings.TrimPrefix(period, CustomPrefix))
	}

	if len(period) < 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	unit := period[len(period)-1]
	magnitude, err := strconv.ParseInt(period[:len(period)-1], 10, 64)
	if err != nil || magnitude < 0 {
		return Range{}, fmt.Errorf("%w: bad magnitude in %q", ErrInvalidPeriod, period)
	}

	mult, ok := unitMS[unit]
	if !ok {
		return Range{Start: now, End: now}, nil
	}

	if magnitude > math.MaxInt64/int64(time.Millisecond)/mult {
		return Range{}, fmt.Errorf("%w: %q is too long", ErrInvalidPeriod, period)
	}
	width := time.Duration(magnitude*mult) * time.Millisecond
	return Range{Start: now.Add(-width), End: now}, nil
}

func resolveCustom(value string) (Range, error) {
	parts := strings.Split(value, "_")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: custom period needs start_end, got %q", ErrInvalidPeriod, value)
	}

	start, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: custom start: %v", ErrInvalidPeriod, err)
	}
	end, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: custom end: %v", ErrInvalidPeriod, err)
	}

	return Range{Start: start, End: end}, nil
}

// Custom builds the custom period token for an explicit interval.
func Custom(start, end time.Time) string {
	return CustomPrefix + start.Format(time.RFC3339Nano) + "_" + end.Format(time.RFC3339Nano)
}

// Presets are the toolbar period choices, cycled in this order.
var Presets = []string{"1h", "6h", "1d", "7d", "2w", "1m", "3m"}

// NextPreset returns the preset after current, wrapping around. Unknown or
// custom periods restart from the first preset.
func NextPreset(current string) string {
	for i, p := range Presets {
		if p == current {
			return Presets[(i+1)%len(Presets)]
		}
	}
	return Presets[0]
}
