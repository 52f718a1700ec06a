package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nixlim/grouptop/internal/storage"
)

// maxRecent bounds the fired-alert history kept for display.
const maxRecent = 50

// Watcher turns the stream of fetch records into alerts. A report that fails
// threshold times in a row raises FetchFailing once; the next successful
// fetch raises FetchRecovered. Malformed trees alert immediately.
type Watcher struct {
	mu        sync.Mutex
	notifier  Notifier
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  map[string]int
	firing    map[string]bool
	lastFired map[string]time.Time
	recent    []Alert
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithNotifier sends every fired alert to n.
func WithNotifier(n Notifier) WatcherOption {
	return func(w *Watcher) { w.notifier = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) { w.now = now }
}

// NewWatcher creates a watcher that alerts after threshold consecutive
// failures and suppresses repeats of the same alert within cooldown.
func NewWatcher(threshold int, cooldown time.Duration, opts ...WatcherOption) *Watcher {
	if threshold < 1 {
		threshold = 1
	}
	w := &Watcher{
		notifier:  nopNotifier{},
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		failures:  make(map[string]int),
		firing:    make(map[string]bool),
		lastFired: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RecordFetch feeds one fetch outcome to the watcher. Stale and canceled
// fetches say nothing about engine health and are ignored.
func (w *Watcher) RecordFetch(rec storage.FetchRecord) {
	if rec.Outcome == storage.OutcomeStale || rec.ErrorKind == "canceled" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	id := rec.ReportID
	if !rec.Failed() {
		if w.firing[id] {
			w.fire(Alert{
				Rule:     RuleFetchRecovered,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("fetches succeed again after %d failures", w.failures[id]),
				ReportID: id,
			})
		}
		delete(w.failures, id)
		delete(w.firing, id)
		return
	}

	w.failures[id]++

	if rec.Outcome == storage.OutcomeMalformed {
		w.fire(Alert{
			Rule:     RuleMalformedTree,
			Severity: SeverityCritical,
			Message:  rec.Error,
			ReportID: id,
		})
	}

	if w.failures[id] >= w.threshold && !w.firing[id] {
		w.firing[id] = true
		w.fire(Alert{
			Rule:     RuleFetchFailing,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d consecutive fetches failed (%s): %s", w.failures[id], rec.ErrorKind, rec.Error),
			ReportID: id,
		})
	}
}

// fire records and sends a, unless the same alert fired within the cooldown.
// The caller holds w.mu.
func (w *Watcher) fire(a Alert) {
	now := w.now()
	key := a.alertKey()
	if last, ok := w.lastFired[key]; ok && now.Sub(last) < w.cooldown {
		log.Debug("alert suppressed", "rule", a.Rule, "report", a.ReportID)
		return
	}
	w.lastFired[key] = now
	a.FiredAt = now

	w.recent = append(w.recent, a)
	if len(w.recent) > maxRecent {
		w.recent = w.recent[len(w.recent)-maxRecent:]
	}

	log.Warn("alert", "rule", a.Rule, "severity", a.Severity, "report", a.ReportID, "msg", a.Message)
	w.notifier.Notify(a)
}

// Alerts returns fired alerts, newest first.
func (w *Watcher) Alerts() []Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Alert, len(w.recent))
	for i, a := range w.recent {
		out[len(w.recent)-1-i] = a
	}
	return out
}

// FailingReports returns how many reports are currently past the failure
// threshold.
func (w *Watcher) FailingReports() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.firing)
}
