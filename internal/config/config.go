package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nixlim/grouptop/internal/engine"
	"github.com/nixlim/grouptop/internal/format"
	"github.com/nixlim/grouptop/internal/period"
)

type Config struct {
	Engine     EngineConfig
	Report     ReportConfig
	Display    DisplayConfig
	Storage    StorageConfig
	Telemetry  TelemetryConfig
	Alerts     AlertsConfig
	Formatting format.Rules
}

type EngineConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	APIKey         string `toml:"api_key"`
}

type ReportConfig struct {
	ID          string   `toml:"id"`
	Period      string   `toml:"period"`
	Granularity string   `toml:"granularity"`
	GroupBy     []string `toml:"group_by"`
	Metrics     []string `toml:"metrics"`
	Columns     []string `toml:"columns"`
	SortBy      string   `toml:"sort_by"`
	SortOrder   string   `toml:"sort_order"`
	Realtime    bool     `toml:"realtime"`
}

type DisplayConfig struct {
	RowHeight               int `toml:"row_height"`
	BufferRows              int `toml:"buffer_rows"`
	RefreshRateMS           int `toml:"refresh_rate_ms"`
	RealtimeIntervalSeconds int `toml:"realtime_interval_seconds"`
}

type StorageConfig struct {
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

type TelemetryConfig struct {
	MetricsAddr           string `toml:"metrics_addr"`
	OTLPEndpoint          string `toml:"otlp_endpoint"`
	ExportIntervalSeconds int    `toml:"export_interval_seconds"`
}

type AlertsConfig struct {
	SystemNotify     bool `toml:"system_notify"`
	FailureThreshold int  `toml:"failure_threshold"`
	CooldownMinutes  int  `toml:"cooldown_minutes"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// Query returns the engine query described by the [report] section.
func (c Config) Query() engine.Query {
	return engine.Query{
		ReportID:    c.Report.ID,
		Metrics:     append([]string(nil), c.Report.Metrics...),
		GroupBy:     append([]string(nil), c.Report.GroupBy...),
		Period:      c.Report.Period,
		Granularity: c.Report.Granularity,
		SortBy:      c.Report.SortBy,
		SortOrder:   c.Report.SortOrder,
		Realtime:    c.Report.Realtime,
	}
}

// AllColumns is the canonical column order: grouped fields, then metrics,
// then any extra configured columns. Duplicates keep their first position.
func (c Config) AllColumns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{c.Report.GroupBy, c.Report.Metrics, c.Report.Columns} {
		for _, col := range list {
			if col == "" || seen[col] {
				continue
			}
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}

// Timeout returns the engine request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// AlertCooldown is the minimum gap between two identical alerts.
func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.Alerts.CooldownMinutes) * time.Minute
}

// RealtimeInterval returns the realtime poll period.
func (c Config) RealtimeInterval() time.Duration {
	return time.Duration(c.Display.RealtimeIntervalSeconds) * time.Second
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "grouptop", "config.toml")
}

// DefaultPath returns the config file consulted when no --config flag is
// given.
func DefaultPath() string {
	return defaultConfigPath()
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	result, err := parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	if data == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}
	return parse(data)
}

var knownTopLevel = map[string]bool{
	"engine":     true,
	"report":     true,
	"display":    true,
	"storage":    true,
	"telemetry":  true,
	"alerts":     true,
	"formatting": true,
}

func parse(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)
	if tf.Formatting != nil {
		result.Config.Formatting = tf.Formatting
	}

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

type tomlFile struct {
	Engine     *EngineConfig    `toml:"engine"`
	Report     *ReportConfig    `toml:"report"`
	Display    *DisplayConfig   `toml:"display"`
	Storage    *StorageConfig   `toml:"storage"`
	Telemetry  *TelemetryConfig `toml:"telemetry"`
	Alerts     *AlertsConfig    `toml:"alerts"`
	Formatting format.Rules     `toml:"formatting"`
}

// mergeFromRaw copies only the keys present in the file so that absent keys
// keep their defaults.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Engine != nil {
		if section, ok := rawSection(raw, "engine"); ok {
			if _, exists := section["base_url"]; exists {
				cfg.Engine.BaseURL = tf.Engine.BaseURL
			}
			if _, exists := section["timeout_seconds"]; exists {
				cfg.Engine.TimeoutSeconds = tf.Engine.TimeoutSeconds
			}
			if _, exists := section["retry_attempts"]; exists {
				cfg.Engine.RetryAttempts = tf.Engine.RetryAttempts
			}
			if _, exists := section["api_key"]; exists {
				cfg.Engine.APIKey = tf.Engine.APIKey
			}
		}
	}
	if tf.Report != nil {
		if section, ok := rawSection(raw, "report"); ok {
			if _, exists := section["id"]; exists {
				cfg.Report.ID = tf.Report.ID
			}
			if _, exists := section["period"]; exists {
				cfg.Report.Period = tf.Report.Period
			}
			if _, exists := section["granularity"]; exists {
				cfg.Report.Granularity = tf.Report.Granularity
			}
			if _, exists := section["group_by"]; exists {
				cfg.Report.GroupBy = tf.Report.GroupBy
			}
			if _, exists := section["metrics"]; exists {
				cfg.Report.Metrics = tf.Report.Metrics
			}
			if _, exists := section["columns"]; exists {
				cfg.Report.Columns = tf.Report.Columns
			}
			if _, exists := section["sort_by"]; exists {
				cfg.Report.SortBy = tf.Report.SortBy
			}
			if _, exists := section["sort_order"]; exists {
				cfg.Report.SortOrder = tf.Report.SortOrder
			}
			if _, exists := section["realtime"]; exists {
				cfg.Report.Realtime = tf.Report.Realtime
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["row_height"]; exists {
				cfg.Display.RowHeight = tf.Display.RowHeight
			}
			if _, exists := section["buffer_rows"]; exists {
				cfg.Display.BufferRows = tf.Display.BufferRows
			}
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["realtime_interval_seconds"]; exists {
				cfg.Display.RealtimeIntervalSeconds = tf.Display.RealtimeIntervalSeconds
			}
		}
	}
	if tf.Storage != nil {
		if section, ok := rawSection(raw, "storage"); ok {
			if _, exists := section["db_path"]; exists {
				cfg.Storage.DBPath = tf.Storage.DBPath
			}
			if _, exists := section["retention_days"]; exists {
				cfg.Storage.RetentionDays = tf.Storage.RetentionDays
			}
		}
	}
	if tf.Telemetry != nil {
		if section, ok := rawSection(raw, "telemetry"); ok {
			if _, exists := section["metrics_addr"]; exists {
				cfg.Telemetry.MetricsAddr = tf.Telemetry.MetricsAddr
			}
			if _, exists := section["otlp_endpoint"]; exists {
				cfg.Telemetry.OTLPEndpoint = tf.Telemetry.OTLPEndpoint
			}
			if _, exists := section["export_interval_seconds"]; exists {
				cfg.Telemetry.ExportIntervalSeconds = tf.Telemetry.ExportIntervalSeconds
			}
		}
	}
	if tf.Alerts != nil {
		if section, ok := rawSection(raw, "alerts"); ok {
			if _, exists := section["system_notify"]; exists {
				cfg.Alerts.SystemNotify = tf.Alerts.SystemNotify
			}
			if _, exists := section["failure_threshold"]; exists {
				cfg.Alerts.FailureThreshold = tf.Alerts.FailureThreshold
			}
			if _, exists := section["cooldown_minutes"]; exists {
				cfg.Alerts.CooldownMinutes = tf.Alerts.CooldownMinutes
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Validate checks c after command-line overrides have been applied.
func (c Config) Validate() error {
	return validate(&c)
}

func validate(cfg *Config) error {
	var errs []string

	if u, err := url.Parse(cfg.Engine.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("engine base_url must be an http(s) URL, got %q", cfg.Engine.BaseURL))
	}
	if cfg.Engine.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("engine timeout_seconds must be positive, got %d", cfg.Engine.TimeoutSeconds))
	}
	if cfg.Engine.RetryAttempts < 1 {
		errs = append(errs, fmt.Sprintf("engine retry_attempts must be positive, got %d", cfg.Engine.RetryAttempts))
	}

	if _, err := period.Resolve(cfg.Report.Period, time.Now()); err != nil {
		errs = append(errs, fmt.Sprintf("report period: %v", err))
	}
	if _, err := period.ValidateGranularity(cfg.Report.Granularity); err != nil {
		errs = append(errs, fmt.Sprintf("report granularity: %v", err))
	}
	switch cfg.Report.SortOrder {
	case "", "asc", "desc":
	default:
		errs = append(errs, fmt.Sprintf("report sort_order must be asc or desc, got %q", cfg.Report.SortOrder))
	}
	for i, f := range cfg.Report.GroupBy {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Sprintf("report group_by[%d] is empty", i))
		}
	}

	if cfg.Display.RowHeight < 1 {
		errs = append(errs, fmt.Sprintf("row_height must be positive, got %d", cfg.Display.RowHeight))
	}
	if cfg.Display.BufferRows < 0 {
		errs = append(errs, fmt.Sprintf("buffer_rows must not be negative, got %d", cfg.Display.BufferRows))
	}
	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.RealtimeIntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("realtime_interval_seconds must be positive, got %d", cfg.Display.RealtimeIntervalSeconds))
	}

	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}

	if cfg.Telemetry.ExportIntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("telemetry export_interval_seconds must be positive, got %d", cfg.Telemetry.ExportIntervalSeconds))
	}

	if cfg.Alerts.FailureThreshold < 1 {
		errs = append(errs, fmt.Sprintf("alerts failure_threshold must be positive, got %d", cfg.Alerts.FailureThreshold))
	}
	if cfg.Alerts.CooldownMinutes < 0 {
		errs = append(errs, fmt.Sprintf("alerts cooldown_minutes must not be negative, got %d", cfg.Alerts.CooldownMinutes))
	}

	errs = append(errs, validateRules(cfg.Formatting)...)

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

var validOperators = map[string]bool{"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}

func validateRules(rules format.Rules) []string {
	var errs []string
	for col, r := range rules {
		switch r.Type {
		case "", format.TypeStyle, format.TypeDate:
		default:
			errs = append(errs, fmt.Sprintf("formatting.%s: unknown type %q", col, r.Type))
		}
		if !format.KnownStyle(r.DefaultStyle) {
			errs = append(errs, fmt.Sprintf("formatting.%s: unknown default_style %q", col, r.DefaultStyle))
		}
		for i, c := range r.Conditions {
			if !validOperators[c.Operator] {
				errs = append(errs, fmt.Sprintf("formatting.%s.conditions[%d]: unknown operator %q", col, i, c.Operator))
			}
			if !format.KnownStyle(c.Style) {
				errs = append(errs, fmt.Sprintf("formatting.%s.conditions[%d]: unknown style %q", col, i, c.Style))
			}
		}
		if r.Type == format.TypeDate && r.Granularity != "" {
			if _, err := period.ValidateGranularity(r.Granularity); err != nil {
				errs = append(errs, fmt.Sprintf("formatting.%s: %v", col, err))
			}
		}
		if r.Locale != "" && !knownLocale(r.Locale) {
			errs = append(errs, fmt.Sprintf("formatting.%s: unknown locale %q", col, r.Locale))
		}
	}
	return errs
}

func knownLocale(l string) bool {
	for _, known := range format.Locales() {
		if l == known {
			return true
		}
	}
	return false
}
