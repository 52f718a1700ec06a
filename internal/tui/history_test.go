package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nixlim/grouptop/internal/storage"
)

type mockHistory struct {
	summaries []storage.DailySummary
	recent    []storage.FetchRecord
	dropped   int64
	days      int
}

func (m *mockHistory) QueryDailySummaries(days int) []storage.DailySummary {
	m.days = days
	return m.summaries
}

func (m *mockHistory) RecentFetches(limit int) []storage.FetchRecord {
	if limit < len(m.recent) {
		return m.recent[:limit]
	}
	return m.recent
}

func (m *mockHistory) DroppedWrites() int64 { return m.dropped }

func historyModel(t *testing.T, h *mockHistory, persistent bool) Model {
	t.Helper()
	m, _ := newTestModel(t, &fakeFetcher{}, WithStartView(ViewHistory), WithHistoryProvider(h), WithPersistenceFlag(persistent))
	return m
}

func TestHistoryView_Daily(t *testing.T) {
	h := &mockHistory{
		summaries: []storage.DailySummary{
			{Date: "2026-02-17", Fetches: 50, Failures: 2, Rows: 12000, AvgLatencyMS: 40, Reports: 3},
			{Date: "2026-02-16", Fetches: 30, Rows: 9000, AvgLatencyMS: 25, Reports: 2},
		},
	}
	m := historyModel(t, h, true)

	view := m.View()
	if h.days != 7 {
		t.Errorf("daily view queried %d days, want 7", h.days)
	}
	for _, want := range []string{"History", "2026-02-17", "2026-02-16", "12,000", "40ms", "Fetches"} {
		if !strings.Contains(view, want) {
			t.Errorf("history view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "No persistence") {
		t.Error("persistent store should not show the memory-only indicator")
	}
}

func TestHistoryView_WeeklyAndMonthlyKeys(t *testing.T) {
	var summaries []storage.DailySummary
	for i := range 14 {
		summaries = append(summaries, storage.DailySummary{
			Date: fmt.Sprintf("2026-02-%02d", 17-i), Fetches: 10, Rows: 100, AvgLatencyMS: 10, Reports: 1,
		})
	}
	h := &mockHistory{summaries: summaries}
	m := historyModel(t, h, true)

	m, _ = press(t, m, "w")
	if m.historyGranularity != "weekly" {
		t.Fatalf("granularity = %q", m.historyGranularity)
	}
	view := m.View()
	if h.days != 28 || !strings.Contains(view, "Week 2026-") {
		t.Errorf("weekly view (days=%d):\n%s", h.days, view)
	}

	m, _ = press(t, m, "m")
	view = m.View()
	if h.days != 90 || !strings.Contains(view, "2026-02") || !strings.Contains(view, "Month") {
		t.Errorf("monthly view (days=%d):\n%s", h.days, view)
	}

	m, _ = press(t, m, "tab")
	if m.view != ViewReport {
		t.Error("tab should return to the report")
	}
}

func TestHistoryView_EmptyAndMemoryOnly(t *testing.T) {
	m := historyModel(t, &mockHistory{dropped: 3}, false)
	view := m.View()
	if !strings.Contains(view, "No fetches recorded yet") {
		t.Error("empty history should say so")
	}
	if !strings.Contains(view, "in memory only") || !strings.Contains(view, "[No persistence]") {
		t.Error("memory-only store should be called out")
	}
	if !strings.Contains(view, "Writes dropped") {
		t.Error("dropped writes should show in the header")
	}
}

func TestHistoryView_RecentFetches(t *testing.T) {
	h := &mockHistory{
		summaries: []storage.DailySummary{{Date: "2026-02-17", Fetches: 2, Failures: 1}},
		recent: []storage.FetchRecord{
			{ReportID: "r1", GroupBy: []string{"country"}, StartedAt: time.Now(), Outcome: storage.OutcomeError, ErrorKind: "network", Error: "engine returned 503"},
			{ReportID: "r1", StartedAt: time.Now(), Outcome: storage.OutcomeOK, Rows: 42},
		},
	}
	view := historyModel(t, h, true).View()
	for _, want := range []string{"Recent fetches", "r1 by country", "network: engine returned 503", "42 rows"} {
		if !strings.Contains(view, want) {
			t.Errorf("recent fetches missing %q:\n%s", want, view)
		}
	}
}

func TestAggregateWeekly(t *testing.T) {
	summaries := []storage.DailySummary{
		{Date: "2026-02-17", Fetches: 10, Failures: 1, Rows: 100, AvgLatencyMS: 20, Reports: 2},
		{Date: "2026-02-16", Fetches: 30, Rows: 300, AvgLatencyMS: 40, Reports: 3},
		{Date: "2026-02-15", Fetches: 5, Rows: 50, AvgLatencyMS: 10, Reports: 1},
	}
	got := aggregateWeekly(summaries)

	want := []historyRow{
		{label: "Week 2026-08", fetches: 40, failures: 1, rows: 400, latencyMS: 10*20 + 30*40, reports: 3},
		{label: "Week 2026-07", fetches: 5, rows: 50, latencyMS: 50, reports: 1},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(historyRow{})); diff != "" {
		t.Errorf("aggregateWeekly mismatch (-want +got):\n%s", diff)
	}
	if avg := got[0].avgLatency(); avg != 35 {
		t.Errorf("weighted avg latency = %v, want 35", avg)
	}
}

func TestAggregateMonthly(t *testing.T) {
	summaries := []storage.DailySummary{
		{Date: "2026-03-01", Fetches: 1},
		{Date: "2026-02-28", Fetches: 2},
		{Date: "2026-02-01", Fetches: 3},
	}
	got := aggregateMonthly(summaries)
	if len(got) != 2 {
		t.Fatalf("months = %d, want 2", len(got))
	}
	if got[0].label != "2026-03" || got[1].label != "2026-02" || got[1].fetches != 5 {
		t.Errorf("aggregateMonthly = %+v", got)
	}
}
