package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nixlim/grouptop/internal/config"
	"github.com/nixlim/grouptop/internal/engine"
	"github.com/nixlim/grouptop/internal/format"
	"github.com/nixlim/grouptop/internal/grouptree"
	"github.com/nixlim/grouptop/internal/selection"
	"github.com/nixlim/grouptop/internal/storage"
)

func newFetchCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	var noLog bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one aggregation and print it with every group expanded",
		Example: heredoc.Doc(`
			# Print the configured report as a table
			$ grouptop fetch

			# Daily visits per country for the last month, as JSON lines
			$ grouptop fetch --report traffic --group-by country --metrics visits -p 1m --json
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			cfg, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			client, err := opts.newEngine(cfg)
			if err != nil {
				return err
			}

			var rec storage.Store
			if !noLog {
				rec, _ = storage.NewStore(cfg.Storage)
				defer rec.Close()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runFetch(ctx, cmd.OutOrStdout(), cfg, client, rec, asJSON, time.Now())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON lines in engine order")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "Do not record this fetch in the fetch log")

	return cmd
}

func runFetch(ctx context.Context, w io.Writer, cfg config.Config, f fetcher, rec recorder, asJSON bool, now time.Time) error {
	q := cfg.Query()
	resp, err := f.Fetch(ctx, q, now)
	var tree *grouptree.Tree
	if err == nil {
		tree, err = grouptree.Build(resp.Rows)
	}
	if rec != nil {
		rec.RecordFetch(storage.NewFetchRecord(q, resp, now, err))
	}
	if err != nil {
		return err
	}
	log.Debug("fetched", "request_id", resp.RequestID, "rows", len(resp.Rows), "attempts", resp.Attempts)

	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range resp.Rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	if len(resp.Rows) == 0 {
		if resp.EmptyRange {
			fmt.Fprintln(w, "The selected period is empty.")
		} else {
			fmt.Fprintln(w, "No rows.")
		}
		return nil
	}

	cols := selection.NewColumns(cfg.AllColumns(), cfg.Report.Columns)
	return printTree(w, tree, cols.Visible(), cfg.Report.SortBy, cfg.Report.SortOrder, cfg.Formatting, now)
}

type fetcher interface {
	Fetch(ctx context.Context, q engine.Query, now time.Time) (engine.Response, error)
}

type recorder interface {
	RecordFetch(storage.FetchRecord)
}

// printTree renders rows fully expanded with the depth shown by indentation.
func printTree(w io.Writer, tree *grouptree.Tree, cols []string, sortBy, sortOrder string, rules format.Rules, now time.Time) error {
	tree.ExpandAll()
	if sortBy != "" {
		dir := grouptree.Direction(sortOrder)
		if dir == "" {
			dir = grouptree.Asc
		}
		tree.SortSiblings(sortBy, dir)
	}

	headers := append([]string{"group"}, cols...)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...)

	for _, vr := range tree.Flatten() {
		cells := make([]string, 0, len(headers))
		cells = append(cells, strings.Repeat("  ", vr.Depth)+vr.Row.Label())
		for _, c := range cols {
			cells = append(cells, rules.Cell(c, vr.Row.Value(c), now).Text)
		}
		t.Row(cells...)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}
