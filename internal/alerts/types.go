// Package alerts watches fetch outcomes and raises desktop notifications
// when a report keeps failing, returns a malformed tree, or recovers.
package alerts

import "time"

// Alert rule name constants.
const (
	RuleFetchFailing   = "FetchFailing"
	RuleMalformedTree  = "MalformedTree"
	RuleFetchRecovered = "FetchRecovered"
)

// Alert severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert represents a triggered alert.
type Alert struct {
	Rule     string // FetchFailing, MalformedTree, FetchRecovered
	Severity string // info, warning, critical
	Message  string
	ReportID string
	FiredAt  time.Time
}

// alertKey returns a deduplication key for this alert, combining the rule name
// and report id. Two alerts with the same key within the cooldown are
// considered duplicates.
func (a Alert) alertKey() string {
	return a.Rule + ":" + a.ReportID
}

// Notifier sends alert notifications via platform-specific mechanisms.
type Notifier interface {
	// Notify sends an alert notification. Implementations must be non-blocking.
	Notify(alert Alert)
}
