package storage

import (
	"database/sql"
	"strings"
)

func writeFetch(tx *sql.Tx, rec *FetchRecord) error {
	realtime := 0
	if rec.Realtime {
		realtime = 1
	}

	_, err := tx.Exec(`
		INSERT INTO fetch_log (
			request_id, report_id, realtime, period, granularity, group_by,
			started_at, duration_ms, rows, attempts, status, outcome, error_kind, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RequestID,
		rec.ReportID,
		realtime,
		rec.Period,
		rec.Granularity,
		strings.Join(rec.GroupBy, ","),
		rec.StartedAt.UTC().Format(timeLayout),
		float64(rec.Duration.Microseconds())/1000,
		rec.Rows,
		rec.Attempts,
		rec.Status,
		rec.Outcome,
		nullIfEmpty(rec.ErrorKind),
		nullIfEmpty(rec.Error),
	)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
