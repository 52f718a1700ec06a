package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteStore) startMaintenance(ctx context.Context) {
	go s.maintenanceLoop(ctx)
}

func (s *SQLiteStore) maintenanceLoop(ctx context.Context) {
	defer close(s.maintenanceDone)

	lastVacuum := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runMaintenanceCycle(time.Now()); err != nil {
				log.Error("maintenance cycle failed", "err", err)
			}

			if time.Since(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					log.Error("VACUUM failed", "err", err)
				} else {
					lastVacuum = time.Now()
				}
			}
		}
	}
}

// retentionCutoff is the first UTC date whose fetches are kept in full.
func retentionCutoff(now time.Time, retentionDays int) string {
	return now.UTC().AddDate(0, 0, -retentionDays).Format("2006-01-02")
}

// runMaintenanceCycle rolls whole days older than the retention window into
// daily_summaries and deletes their raw rows in one transaction.
func (s *SQLiteStore) runMaintenanceCycle(now time.Time) error {
	if s.retentionDays <= 0 {
		return nil
	}
	cutoff := retentionCutoff(now, s.retentionDays)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO daily_summaries (date, fetches, failures, rows, total_latency_ms, reports)
		SELECT
			substr(started_at, 1, 10) AS date,
			COUNT(*),
			COUNT(CASE WHEN outcome IN ('error', 'malformed') THEN 1 END),
			SUM(rows),
			SUM(duration_ms),
			COUNT(DISTINCT report_id)
		FROM fetch_log
		WHERE substr(started_at, 1, 10) < ?
		GROUP BY substr(started_at, 1, 10)
		ON CONFLICT(date) DO UPDATE SET
			fetches = daily_summaries.fetches + excluded.fetches,
			failures = daily_summaries.failures + excluded.failures,
			rows = daily_summaries.rows + excluded.rows,
			total_latency_ms = daily_summaries.total_latency_ms + excluded.total_latency_ms,
			reports = MAX(daily_summaries.reports, excluded.reports)
	`, cutoff)
	if err != nil {
		return fmt.Errorf("aggregating old fetches: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM fetch_log WHERE substr(started_at, 1, 10) < ?", cutoff); err != nil {
		return fmt.Errorf("pruning old fetches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing maintenance: %w", err)
	}
	return nil
}
