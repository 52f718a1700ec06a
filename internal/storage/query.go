package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// RecentFetches returns up to limit records, newest first.
func (s *SQLiteStore) RecentFetches(limit int) []FetchRecord {
	if limit <= 0 {
		return nil
	}

	rows, err := s.db.Query(`
		SELECT request_id, report_id, realtime, period, granularity, group_by,
			started_at, duration_ms, rows, attempts, status, outcome, error_kind, error
		FROM fetch_log
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		log.Error("querying recent fetches", "err", err)
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []FetchRecord
	for rows.Next() {
		var (
			rec                     FetchRecord
			realtime                int
			period, gran, groupBy   sql.NullString
			startedAt               string
			durationMS              float64
			errorKind, errorMessage sql.NullString
		)
		if err := rows.Scan(&rec.RequestID, &rec.ReportID, &realtime, &period, &gran, &groupBy,
			&startedAt, &durationMS, &rec.Rows, &rec.Attempts, &rec.Status, &rec.Outcome,
			&errorKind, &errorMessage); err != nil {
			log.Error("scanning fetch row", "err", err)
			continue
		}
		rec.Realtime = realtime != 0
		rec.Period = period.String
		rec.Granularity = gran.String
		if groupBy.String != "" {
			rec.GroupBy = strings.Split(groupBy.String, ",")
		}
		if t, err := time.Parse(timeLayout, startedAt); err == nil {
			rec.StartedAt = t
		}
		rec.Duration = time.Duration(durationMS * float64(time.Millisecond))
		rec.ErrorKind = errorKind.String
		rec.Error = errorMessage.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		log.Error("iterating fetch rows", "err", err)
	}
	return out
}

// QueryDailySummaries returns one summary per day for the last days days,
// newest first, combining rolled-up days with days still held in full.
func (s *SQLiteStore) QueryDailySummaries(days int) []DailySummary {
	return s.queryDailySummaries(days, time.Now())
}

func (s *SQLiteStore) queryDailySummaries(days int, now time.Time) []DailySummary {
	cutoff := now.UTC().AddDate(0, 0, -days).Format("2006-01-02")

	rows, err := s.db.Query(`
		SELECT date, SUM(fetches), SUM(failures), SUM(rows), SUM(total_latency_ms), MAX(reports)
		FROM (
			SELECT date, fetches, failures, rows, total_latency_ms, reports
			FROM daily_summaries
			WHERE date >= ?

			UNION ALL

			SELECT
				substr(started_at, 1, 10) AS date,
				COUNT(*) AS fetches,
				COUNT(CASE WHEN outcome IN ('error', 'malformed') THEN 1 END) AS failures,
				SUM(rows) AS rows,
				SUM(duration_ms) AS total_latency_ms,
				COUNT(DISTINCT report_id) AS reports
			FROM fetch_log
			WHERE substr(started_at, 1, 10) >= ?
			GROUP BY substr(started_at, 1, 10)
		)
		GROUP BY date
		ORDER BY date DESC
	`, cutoff, cutoff)
	if err != nil {
		log.Error("querying daily summaries", "err", err)
		return nil
	}
	defer func() { _ = rows.Close() }()

	var summaries []DailySummary
	for rows.Next() {
		var (
			ds           DailySummary
			totalLatency float64
		)
		if err := rows.Scan(&ds.Date, &ds.Fetches, &ds.Failures, &ds.Rows, &totalLatency, &ds.Reports); err != nil {
			log.Error("scanning daily summary row", "err", err)
			continue
		}
		if ds.Fetches > 0 {
			ds.AvgLatencyMS = totalLatency / float64(ds.Fetches)
		}
		summaries = append(summaries, ds)
	}
	if err := rows.Err(); err != nil {
		log.Error("iterating daily summary rows", "err", err)
	}
	return summaries
}
