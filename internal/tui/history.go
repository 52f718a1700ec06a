package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nixlim/grouptop/internal/storage"
)

type historyRow struct {
	label     string
	fetches   int
	failures  int
	rows      int64
	latencyMS float64
	reports   int
}

// avgLatency weights each day's average by its fetch count.
func (r historyRow) avgLatency() float64 {
	if r.fetches == 0 {
		return 0
	}
	return r.latencyMS / float64(r.fetches)
}

func (r *historyRow) add(ds storage.DailySummary) {
	r.fetches += ds.Fetches
	r.failures += ds.Failures
	r.rows += ds.Rows
	r.latencyMS += ds.AvgLatencyMS * float64(ds.Fetches)
	if ds.Reports > r.reports {
		r.reports = ds.Reports
	}
}

const recentFetchLimit = 8

func (m Model) renderHistory() string {
	var sb strings.Builder

	viewLabel := " [History] Fetch log"
	indicators := m.headerIndicators()
	help := "d:Daily w:Weekly m:Monthly  Tab:Report  q:Quit "
	padding := m.width - lipgloss.Width(" grouptop") - lipgloss.Width(viewLabel) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}
	headerLine := headerStyle.Width(m.width).Render(
		" grouptop" + viewLabel + indicators + strings.Repeat(" ", padding) + help)
	sb.WriteString(headerLine)
	sb.WriteByte('\n')

	if !m.isPersistent {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  fetch log is in memory only, set storage.db_path to keep history across runs"))
		sb.WriteByte('\n')
	}

	var summaries []storage.DailySummary
	if m.history != nil {
		switch m.historyGranularity {
		case "weekly":
			summaries = m.history.QueryDailySummaries(28)
		case "monthly":
			summaries = m.history.QueryDailySummaries(90)
		default:
			summaries = m.history.QueryDailySummaries(7)
		}
	}

	if len(summaries) == 0 {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  No fetches recorded yet"))
		sb.WriteByte('\n')
		return sb.String()
	}

	var rows []historyRow
	switch m.historyGranularity {
	case "weekly":
		rows = aggregateWeekly(summaries)
	case "monthly":
		rows = aggregateMonthly(summaries)
	default:
		for _, ds := range summaries {
			r := historyRow{label: ds.Date}
			r.add(ds)
			rows = append(rows, r)
		}
	}

	sb.WriteByte('\n')
	var dateHeader string
	switch m.historyGranularity {
	case "weekly":
		dateHeader = "Week"
	case "monthly":
		dateHeader = "Month"
	default:
		dateHeader = "Date"
	}
	sb.WriteString(fmt.Sprintf("  %-14s %8s %8s %12s %12s %8s",
		dateHeader, "Fetches", "Failed", "Rows", "Avg latency", "Reports"))
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 68)))
	sb.WriteByte('\n')

	visibleH := m.height - 6 - recentFetchLimit
	if visibleH < 1 {
		visibleH = 1
	}
	startIdx := m.historyScrollPos
	if startIdx > len(rows)-visibleH {
		startIdx = len(rows) - visibleH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + visibleH
	if endIdx > len(rows) {
		endIdx = len(rows)
	}

	for i := startIdx; i < endIdx; i++ {
		r := rows[i]
		failed := fmt.Sprintf("%8d", r.failures)
		if r.failures > 0 {
			failed = badStyle.Render(failed)
		}
		sb.WriteString(fmt.Sprintf("  %-14s %8d %s %12s %10.0fms %8d",
			r.label, r.fetches, failed, humanize.Comma(r.rows), r.avgLatency(), r.reports))
		sb.WriteByte('\n')
	}

	if m.history != nil {
		sb.WriteString(m.renderRecentFetches(m.history.RecentFetches(recentFetchLimit)))
	}

	return sb.String()
}

func (m Model) renderRecentFetches(recs []storage.FetchRecord) string {
	if len(recs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('\n')
	sb.WriteString(panelTitleStyle.Render("  Recent fetches"))
	sb.WriteByte('\n')
	for _, r := range recs {
		target := r.ReportID
		if len(r.GroupBy) > 0 {
			target += " by " + strings.Join(r.GroupBy, ",")
		}
		outcome := r.Outcome
		switch {
		case r.Failed():
			outcome = badStyle.Render(outcome)
		case r.Outcome == storage.OutcomeStale:
			outcome = dimStyle.Render(outcome)
		default:
			outcome = goodStyle.Render(outcome)
		}
		line := fmt.Sprintf("  %-12s %-9s %-28s %6d rows %6s",
			humanize.Time(r.StartedAt), outcome, truncate(target, 28), r.Rows, r.Duration.Round(time.Millisecond))
		if r.Error != "" {
			line += dimStyle.Render("  " + r.ErrorKind + ": " + truncate(r.Error, 40))
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func aggregateWeekly(summaries []storage.DailySummary) []historyRow {
	weekMap := make(map[string]*historyRow)
	var weekOrder []string

	for _, ds := range summaries {
		weekLabel := ds.Date
		if len(ds.Date) == 10 {
			t, err := time.Parse("2006-01-02", ds.Date)
			if err == nil {
				y, w := t.ISOWeek()
				weekLabel = fmt.Sprintf("Week %d-%02d", y, w)
			}
		}

		if _, exists := weekMap[weekLabel]; !exists {
			weekMap[weekLabel] = &historyRow{label: weekLabel}
			weekOrder = append(weekOrder, weekLabel)
		}
		weekMap[weekLabel].add(ds)
	}

	result := make([]historyRow, 0, len(weekOrder))
	for _, key := range weekOrder {
		result = append(result, *weekMap[key])
	}
	return result
}

func aggregateMonthly(summaries []storage.DailySummary) []historyRow {
	monthMap := make(map[string]*historyRow)
	var monthOrder []string

	for _, ds := range summaries {
		monthLabel := ds.Date
		if len(ds.Date) >= 7 {
			monthLabel = ds.Date[:7]
		}
		if _, exists := monthMap[monthLabel]; !exists {
			monthMap[monthLabel] = &historyRow{label: monthLabel}
			monthOrder = append(monthOrder, monthLabel)
		}
		monthMap[monthLabel].add(ds)
	}

	result := make([]historyRow, 0, len(monthOrder))
	for _, key := range monthOrder {
		result = append(result, *monthMap[key])
	}
	return result
}
