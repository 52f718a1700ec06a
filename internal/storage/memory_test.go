package storage

import (
	"os"
	"testing"
	"time"
)

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o644)
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	m := NewMemoryStore(2)
	base := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	m.RecordFetch(sampleRecord("a", base, OutcomeOK))
	m.RecordFetch(sampleRecord("b", base.Add(time.Minute), OutcomeOK))
	m.RecordFetch(sampleRecord("c", base.Add(2*time.Minute), OutcomeOK))

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	got := m.RecentFetches(10)
	if len(got) != 2 || got[0].RequestID != "c" || got[1].RequestID != "b" {
		t.Errorf("RecentFetches = %+v", got)
	}
}

func TestMemoryStore_ZeroCapacityHoldsOne(t *testing.T) {
	m := NewMemoryStore(0)
	m.RecordFetch(sampleRecord("a", time.Now(), OutcomeOK))
	m.RecordFetch(sampleRecord("b", time.Now(), OutcomeOK))
	if m.Len() != 1 || m.RecentFetches(1)[0].RequestID != "b" {
		t.Error("capacity 0 should behave as 1")
	}
}

func TestMemoryStore_DailySummaries(t *testing.T) {
	m := NewMemoryStore(10)
	now := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
	m.RecordFetch(sampleRecord("1", now.Add(-time.Hour), OutcomeOK))
	m.RecordFetch(sampleRecord("2", now.Add(-2*time.Hour), OutcomeMalformed))
	m.RecordFetch(sampleRecord("3", now.AddDate(0, 0, -1), OutcomeStale))
	m.RecordFetch(sampleRecord("4", now.AddDate(0, 0, -20), OutcomeOK))

	got := m.queryDailySummaries(7, now)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (20-day-old record excluded)", len(got))
	}
	if got[0].Date != "2026-02-17" || got[0].Fetches != 2 || got[0].Failures != 1 {
		t.Errorf("today = %+v", got[0])
	}
	if got[1].Failures != 0 {
		t.Error("stale results are not failures")
	}
	if got[0].Reports != 1 {
		t.Errorf("reports = %d, want 1", got[0].Reports)
	}
}
