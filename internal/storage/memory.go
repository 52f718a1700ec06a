package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is a fixed-capacity ring of fetch records. When full, the
// oldest record is evicted. All methods are safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items []FetchRecord
	cap   int
	head  int // index of the oldest record
	count int
}

// NewMemoryStore creates a store holding at most capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{
		items: make([]FetchRecord, capacity),
		cap:   capacity,
	}
}

func (m *MemoryStore) RecordFetch(rec FetchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == m.cap {
		m.items[m.head] = rec
		m.head = (m.head + 1) % m.cap
		return
	}
	m.items[(m.head+m.count)%m.cap] = rec
	m.count++
}

// RecentFetches returns up to limit records, newest first.
func (m *MemoryStore) RecentFetches(limit int) []FetchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || m.count == 0 {
		return nil
	}
	if limit > m.count {
		limit = m.count
	}
	out := make([]FetchRecord, 0, limit)
	for i := m.count - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.items[(m.head+i)%m.cap])
	}
	return out
}

func (m *MemoryStore) QueryDailySummaries(days int) []DailySummary {
	return m.queryDailySummaries(days, time.Now())
}

func (m *MemoryStore) queryDailySummaries(days int, now time.Time) []DailySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := now.UTC().AddDate(0, 0, -days).Format("2006-01-02")

	type acc struct {
		DailySummary
		latency float64
		reports map[string]struct{}
	}
	byDate := make(map[string]*acc)
	for i := 0; i < m.count; i++ {
		rec := m.items[(m.head+i)%m.cap]
		date := rec.StartedAt.UTC().Format("2006-01-02")
		if date < cutoff {
			continue
		}
		a, ok := byDate[date]
		if !ok {
			a = &acc{DailySummary: DailySummary{Date: date}, reports: make(map[string]struct{})}
			byDate[date] = a
		}
		a.Fetches++
		if rec.Failed() {
			a.Failures++
		}
		a.Rows += int64(rec.Rows)
		a.latency += float64(rec.Duration.Microseconds()) / 1000
		a.reports[rec.ReportID] = struct{}{}
	}

	out := make([]DailySummary, 0, len(byDate))
	for _, a := range byDate {
		ds := a.DailySummary
		ds.Reports = len(a.reports)
		if ds.Fetches > 0 {
			ds.AvgLatencyMS = a.latency / float64(ds.Fetches)
		}
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (m *MemoryStore) DroppedWrites() int64 { return 0 }

func (m *MemoryStore) Close() error { return nil }

// Len returns the number of records held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}
