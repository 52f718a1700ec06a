package alerts

import (
	"sync"
	"testing"
	"time"

	"github.com/nixlim/grouptop/internal/storage"
)

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *captureNotifier) Notify(a Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

func (c *captureNotifier) rules() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, a := range c.alerts {
		out = append(out, a.Rule)
	}
	return out
}

func failed(report string) storage.FetchRecord {
	return storage.FetchRecord{ReportID: report, Outcome: storage.OutcomeError, ErrorKind: "network", Error: "engine returned 503"}
}

func ok(report string) storage.FetchRecord {
	return storage.FetchRecord{ReportID: report, Outcome: storage.OutcomeOK}
}

func newTestWatcher(threshold int, cooldown time.Duration) (*Watcher, *captureNotifier, *time.Time) {
	now := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
	n := &captureNotifier{}
	w := NewWatcher(threshold, cooldown, WithNotifier(n), WithClock(func() time.Time { return now }))
	return w, n, &now
}

func TestWatcher_FailingAfterThresholdThenRecovered(t *testing.T) {
	w, n, _ := newTestWatcher(3, 0)

	w.RecordFetch(failed("r1"))
	w.RecordFetch(failed("r1"))
	if len(n.rules()) != 0 {
		t.Fatal("no alert before the threshold")
	}
	w.RecordFetch(failed("r1"))
	w.RecordFetch(failed("r1"))
	if got := n.rules(); len(got) != 1 || got[0] != RuleFetchFailing {
		t.Fatalf("alerts = %v, want one FetchFailing", got)
	}
	if w.FailingReports() != 1 {
		t.Errorf("failing reports = %d", w.FailingReports())
	}

	w.RecordFetch(ok("r1"))
	if got := n.rules(); len(got) != 2 || got[1] != RuleFetchRecovered {
		t.Fatalf("alerts = %v, want recovery", got)
	}
	if w.FailingReports() != 0 {
		t.Error("recovered report should no longer be failing")
	}

	w.RecordFetch(ok("r1"))
	if len(n.rules()) != 2 {
		t.Error("a healthy report should not alert again")
	}
}

func TestWatcher_SuccessResetsCount(t *testing.T) {
	w, n, _ := newTestWatcher(2, 0)
	w.RecordFetch(failed("r1"))
	w.RecordFetch(ok("r1"))
	w.RecordFetch(failed("r1"))
	if len(n.rules()) != 0 {
		t.Errorf("interleaved failures should not alert, got %v", n.rules())
	}
}

func TestWatcher_ReportsAreIndependent(t *testing.T) {
	w, n, _ := newTestWatcher(2, 0)
	w.RecordFetch(failed("r1"))
	w.RecordFetch(failed("r2"))
	if len(n.rules()) != 0 {
		t.Error("failures of different reports must not add up")
	}
}

func TestWatcher_MalformedAlertsImmediately(t *testing.T) {
	w, n, _ := newTestWatcher(5, 0)
	w.RecordFetch(storage.FetchRecord{ReportID: "r1", Outcome: storage.OutcomeMalformed, ErrorKind: "malformed_tree", Error: "level skips"})
	got := n.rules()
	if len(got) != 1 || got[0] != RuleMalformedTree {
		t.Fatalf("alerts = %v", got)
	}
	if n.alerts[0].Severity != SeverityCritical {
		t.Errorf("severity = %q", n.alerts[0].Severity)
	}
}

func TestWatcher_IgnoresStaleAndCanceled(t *testing.T) {
	w, n, _ := newTestWatcher(1, 0)
	w.RecordFetch(storage.FetchRecord{ReportID: "r1", Outcome: storage.OutcomeStale})
	w.RecordFetch(storage.FetchRecord{ReportID: "r1", Outcome: storage.OutcomeError, ErrorKind: "canceled"})
	if len(n.rules()) != 0 {
		t.Errorf("alerts = %v", n.rules())
	}
}

func TestWatcher_CooldownSuppressesRepeats(t *testing.T) {
	w, n, now := newTestWatcher(1, 10*time.Minute)
	w.RecordFetch(failed("r1"))
	w.RecordFetch(ok("r1"))
	w.RecordFetch(failed("r1"))
	if got := n.rules(); len(got) != 2 {
		t.Fatalf("second FetchFailing inside the cooldown should be suppressed, got %v", got)
	}

	w.RecordFetch(ok("r1"))
	*now = now.Add(11 * time.Minute)
	w.RecordFetch(failed("r1"))
	if got := n.rules(); got[len(got)-1] != RuleFetchFailing {
		t.Errorf("alert should fire again after the cooldown, got %v", got)
	}
}

func TestWatcher_AlertsNewestFirst(t *testing.T) {
	w, _, _ := newTestWatcher(1, 0)
	w.RecordFetch(failed("r1"))
	w.RecordFetch(ok("r1"))

	got := w.Alerts()
	if len(got) != 2 || got[0].Rule != RuleFetchRecovered || got[1].Rule != RuleFetchFailing {
		t.Errorf("alerts = %+v", got)
	}
	if got[0].FiredAt.IsZero() {
		t.Error("FiredAt should be stamped")
	}
}
