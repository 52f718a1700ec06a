package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nixlim/grouptop/internal/config"
	"github.com/nixlim/grouptop/internal/engine"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logFile    string
	logLevel   string
	debugFile  string

	engineURL    string
	reportID     string
	period       string
	granularity  string
	groupBy      []string
	metrics      []string
	sortBy       string
	sortOrder    string
	realtime     bool
	dbPath       string
	metricsAddr  string
	otlpEndpoint string

	closers []io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "grouptop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&globalOptions{})
}

func newRootCmdWith(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grouptop",
		Short: "Explore grouped aggregation reports in the terminal",
		Long: heredoc.Doc(`
			grouptop asks an analytics engine for a grouped aggregation and shows
			the result as a collapsible tree. Groups expand in place, columns can
			be hidden and sorted, and realtime reports refresh on an interval.
		`),
		Example: heredoc.Doc(`
			# Open the report configured in ~/.config/grouptop/config.toml
			$ grouptop

			# Group a report by country then city over the last two weeks
			$ grouptop --report traffic --group-by country,city --period 2w

			# Follow live data, exposing metrics for Prometheus
			$ grouptop --realtime --group-by country --metrics-addr :9464
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			cfg, err := opts.load(cmd, true)
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	f.StringVar(&opts.logFile, "log-file", "", "Write application logs to this file")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&opts.debugFile, "debug", "", "Write every engine exchange as JSONL to this file")
	f.StringVar(&opts.engineURL, "engine-url", "", "Engine base URL")
	f.StringVarP(&opts.reportID, "report", "r", "", "Report id")
	f.StringVarP(&opts.period, "period", "p", "", "Period token, e.g. 7d, 2w or custom:<start>_<end>")
	f.StringVarP(&opts.granularity, "granularity", "g", "", "Bucket granularity, e.g. hour or day")
	f.StringSliceVar(&opts.groupBy, "group-by", nil, "Grouping fields, outermost first")
	f.StringSliceVar(&opts.metrics, "metrics", nil, "Metric fields to aggregate")
	f.StringVar(&opts.sortBy, "sort-by", "", "Initial sort column")
	f.StringVar(&opts.sortOrder, "sort-order", "", "Initial sort order: asc or desc")
	f.BoolVar(&opts.realtime, "realtime", false, "Query the realtime endpoint")
	f.StringVar(&opts.dbPath, "db-path", "", "Fetch log database (empty keeps the log in memory)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Push metrics to this OTLP gRPC collector")

	cmd.AddCommand(newFetchCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newGranularitiesCmd(opts))

	return cmd
}

// load reads the config file, applies flag overrides and sets up logging.
// The TUI owns the terminal, so it logs nowhere unless --log-file is set.
func (o *globalOptions) load(cmd *cobra.Command, tui bool) (config.Config, error) {
	if err := o.setupLogging(cmd.ErrOrStderr(), tui); err != nil {
		return config.Config{}, err
	}

	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	res, err := config.LoadFrom(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	for _, w := range res.Warnings {
		log.Warn("config warning", "msg", w)
	}

	cfg := res.Config
	o.applyOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (o *globalOptions) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("engine-url") {
		cfg.Engine.BaseURL = o.engineURL
	}
	if f.Changed("report") {
		cfg.Report.ID = o.reportID
	}
	if f.Changed("period") {
		cfg.Report.Period = o.period
	}
	if f.Changed("granularity") {
		cfg.Report.Granularity = o.granularity
	}
	if f.Changed("group-by") {
		cfg.Report.GroupBy = o.groupBy
	}
	if f.Changed("metrics") {
		cfg.Report.Metrics = o.metrics
	}
	if f.Changed("sort-by") {
		cfg.Report.SortBy = o.sortBy
	}
	if f.Changed("sort-order") {
		cfg.Report.SortOrder = o.sortOrder
	}
	if f.Changed("realtime") {
		cfg.Report.Realtime = o.realtime
	}
	if f.Changed("db-path") {
		cfg.Storage.DBPath = o.dbPath
	}
	if f.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = o.metricsAddr
	}
	if f.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = o.otlpEndpoint
	}
}

func (o *globalOptions) setupLogging(stderr io.Writer, tui bool) error {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)
	log.SetTimeFormat(time.RFC3339)
	log.SetReportTimestamp(true)

	switch {
	case o.logFile != "":
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file %q: %w", o.logFile, err)
		}
		o.closers = append(o.closers, f)
		log.SetOutput(f)
		log.SetFormatter(log.LogfmtFormatter)
	case tui:
		log.SetOutput(io.Discard)
	default:
		log.SetOutput(stderr)
	}
	return nil
}

// engineOptions builds the client options, opening the exchange log when
// --debug is set.
func (o *globalOptions) engineOptions(cfg config.Config) ([]engine.Option, error) {
	opts := []engine.Option{
		engine.WithRetry(uint(cfg.Engine.RetryAttempts), 200*time.Millisecond),
	}
	if cfg.Engine.APIKey != "" {
		opts = append(opts, engine.WithAPIKey(cfg.Engine.APIKey))
	}
	if o.debugFile != "" {
		f, err := os.OpenFile(o.debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening debug log %q: %w", o.debugFile, err)
		}
		o.closers = append(o.closers, f)
		opts = append(opts, engine.WithLogger(engine.NewFileLogger(f)))
	}
	return opts, nil
}

func (o *globalOptions) newEngine(cfg config.Config) (*engine.Client, error) {
	opts, err := o.engineOptions(cfg)
	if err != nil {
		return nil, err
	}
	return engine.NewClient(cfg.Engine.BaseURL, cfg.Timeout(), opts...), nil
}

func (o *globalOptions) close() {
	for _, c := range o.closers {
		_ = c.Close()
	}
	o.closers = nil
}
