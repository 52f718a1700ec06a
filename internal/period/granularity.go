package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidGranularity is returned for tokens outside the supported enumeration.
var ErrInvalidGranularity = errors.New("invalid granularity")

// Granularity is a validated aggregation bucket token.
type Granularity string

const (
	Second    Granularity = "second"
	Minute    Granularity = "minute"
	Minutes5  Granularity = "5_minutes"
	Minutes10 Granularity = "10_minutes"
	Minutes15 Granularity = "15_minutes"
	Minutes30 Granularity = "30_minutes"
	Hour      Granularity = "hour"
	Hours2    Granularity = "2_hours"
	Hours4    Granularity = "4_hours"
	Hours6    Granularity = "6_hours"
	Hours12   Granularity = "12_hours"
	Day       Granularity = "day"
	Days3     Granularity = "3_days"
)

var granularities = []struct {
	g     Granularity
	width time.Duration
	label string
}{
	{Second, time.Second, "Second"},
	{Minute, time.Minute, "Minute"},
	{Minutes5, 5 * time.Minute, "5 minutes"},
	{Minutes10, 10 * time.Minute, "10 minutes"},
	{Minutes15, 15 * time.Minute, "15 minutes"},
	{Minutes30, 30 * time.Minute, "30 minutes"},
	{Hour, time.Hour, "Hour"},
	{Hours2, 2 * time.Hour, "2 hours"},
	{Hours4, 4 * time.Hour, "4 hours"},
	{Hours6, 6 * time.Hour, "6 hours"},
	{Hours12, 12 * time.Hour, "12 hours"},
	{Day, 24 * time.Hour, "Day"},
	{Days3, 72 * time.Hour, "3 days"},
}

// ValidateGranularity accepts only tokens from the fixed enumeration.
func ValidateGranularity(token string) (Granularity, error) {
	for _, e := range granularities {
		if string(e.g) == token {
			return e.g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, token)
}

// BucketWidth returns the width of one bucket, or zero for an unknown value.
func (g Granularity) BucketWidth() time.Duration {
	for _, e := range granularities {
		if e.g == g {
			return e.width
		}
	}
	return 0
}

// Label is the human-readable menu label.
func (g Granularity) Label() string {
	for _, e := range granularities {
		if e.g == g {
			return e.label
		}
	}
	return string(g)
}

// AtLeastDay reports whether buckets are a day or wider.
func (g Granularity) AtLeastDay() bool {
	return g.BucketWidth() >= 24*time.Hour
}

// Granularities returns the enumeration in canonical order.
func Granularities() []Granularity {
	out := make([]Granularity, len(granularities))
	for i, e := range granularities {
		out[i] = e.g
	}
	return out
}

// GranularityOptions returns the enumeration for menu population with current
// pinned first. The remaining entries keep canonical order.
func GranularityOptions(current Granularity) []Granularity {
	out := make([]Granularity, 0, len(granularities))
	for _, e := range granularities {
		if e.g == current {
			out = append(out, e.g)
		}
	}
	for _, e := range granularities {
		if e.g != current {
			out = append(out, e.g)
		}
	}
	return out
}
