package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nixlim/grouptop/internal/storage"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarise the fetch log per day",
		Example: heredoc.Doc(`
			# Fetch counts, failures and latency for the last week
			$ grouptop history

			# Last 30 days from a specific database
			$ grouptop history --days 30 --db-path ~/grouptop.db
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			cfg, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			store, persistent := storage.NewStore(cfg.Storage)
			defer store.Close()
			if !persistent {
				fmt.Fprintln(cmd.ErrOrStderr(), "fetch log is not persistent, nothing to show")
				return nil
			}
			return printHistory(cmd.OutOrStdout(), store.QueryDailySummaries(days))
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to show")
	return cmd
}

func printHistory(w io.Writer, summaries []storage.DailySummary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No fetches recorded.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers("date", "fetches", "failed", "rows", "avg latency", "reports")
	for _, ds := range summaries {
		t.Row(
			ds.Date,
			strconv.Itoa(ds.Fetches),
			strconv.Itoa(ds.Failures),
			humanize.Comma(ds.Rows),
			fmt.Sprintf("%.0fms", ds.AvgLatencyMS),
			strconv.Itoa(ds.Reports),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
