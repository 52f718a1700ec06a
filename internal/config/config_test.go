package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nixlim/grouptop/internal/format"
)

func TestConfigParser_Defaults(t *testing.T) {
	result, err := LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing config file, got: %v", err)
	}

	cfg := result.Config

	if cfg.Engine.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("default base_url: got %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.TimeoutSeconds != 15 {
		t.Errorf("default timeout_seconds: want 15, got %d", cfg.Engine.TimeoutSeconds)
	}
	if cfg.Engine.RetryAttempts != 3 {
		t.Errorf("default retry_attempts: want 3, got %d", cfg.Engine.RetryAttempts)
	}
	if cfg.Report.Period != "7d" {
		t.Errorf("default period: want 7d, got %q", cfg.Report.Period)
	}
	if cfg.Report.Granularity != "day" {
		t.Errorf("default granularity: want day, got %q", cfg.Report.Granularity)
	}
	if cfg.Display.RowHeight != 1 {
		t.Errorf("default row_height: want 1, got %d", cfg.Display.RowHeight)
	}
	if cfg.Display.BufferRows != 5 {
		t.Errorf("default buffer_rows: want 5, got %d", cfg.Display.BufferRows)
	}
	if cfg.Display.RefreshRateMS != 500 {
		t.Errorf("default refresh_rate_ms: want 500, got %d", cfg.Display.RefreshRateMS)
	}
	if cfg.RealtimeInterval() != 10*time.Second {
		t.Errorf("default realtime interval: want 10s, got %v", cfg.RealtimeInterval())
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("default retention_days: want 30, got %d", cfg.Storage.RetentionDays)
	}
	if !strings.HasSuffix(cfg.Storage.DBPath, filepath.Join("grouptop", "grouptop.db")) {
		t.Errorf("default db_path: got %q", cfg.Storage.DBPath)
	}
	if cfg.Telemetry.MetricsAddr != "" || cfg.Telemetry.OTLPEndpoint != "" {
		t.Error("telemetry should be disabled by default")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings for missing file, got %v", result.Warnings)
	}
}

func TestConfigParser_PartialConfig(t *testing.T) {
	tomlData := `
[engine]
base_url = "https://engine.example.com/api"

[report]
id = "sales"
group_by = ["country", "city"]
metrics = ["revenue"]
sort_by = "revenue"
sort_order = "desc"
`
	result, err := LoadFromString(tomlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := result.Config
	if cfg.Engine.BaseURL != "https://engine.example.com/api" {
		t.Errorf("base_url: got %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.TimeoutSeconds != 15 {
		t.Errorf("default timeout should be preserved, got %d", cfg.Engine.TimeoutSeconds)
	}
	if cfg.Report.Period != "7d" {
		t.Errorf("default period should be preserved, got %q", cfg.Report.Period)
	}

	q := cfg.Query()
	if q.ReportID != "sales" || len(q.GroupBy) != 2 || q.SortOrder != "desc" {
		t.Errorf("Query() = %+v", q)
	}
}

func TestConfigParser_InvalidValue(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"bad url", "[engine]\nbase_url = \"ftp://x\"", "base_url"},
		{"zero timeout", "[engine]\ntimeout_seconds = 0", "timeout_seconds"},
		{"bad period", "[report]\nperiod = \"custom:x\"", "report period"},
		{"bad granularity", "[report]\ngranularity = \"week\"", "report granularity"},
		{"bad sort order", "[report]\nsort_order = \"up\"", "sort_order"},
		{"blank group_by", "[report]\ngroup_by = [\"country\", \"\"]", "group_by[1]"},
		{"zero row height", "[display]\nrow_height = 0", "row_height"},
		{"negative buffer", "[display]\nbuffer_rows = -1", "buffer_rows"},
		{"zero retention", "[storage]\nretention_days = 0", "retention_days"},
		{"zero export interval", "[telemetry]\nexport_interval_seconds = 0", "export_interval_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.toml)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigParser_ErrorsAggregated(t *testing.T) {
	_, err := LoadFromString("[display]\nrow_height = 0\nrefresh_rate_ms = 0\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "row_height") || !strings.Contains(err.Error(), "refresh_rate_ms") {
		t.Errorf("both problems should be reported: %v", err)
	}
}

func TestConfigParser_UnknownKey(t *testing.T) {
	result, err := LoadFromString("[receiver]\ngrpc_port = 4317\n")
	if err != nil {
		t.Fatalf("unknown keys should warn, not fail: %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "receiver") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestConfigParser_Formatting(t *testing.T) {
	tomlData := `
[formatting.revenue]
type = "style"
default_style = "dim"
prefix = "$"
thousands = true

[[formatting.revenue.conditions]]
operator = ">"
value = 1000
style = "good"

[[formatting.revenue.conditions]]
operator = "<"
value = 0.5
style = "bad"

[formatting.day]
type = "date"
granularity = "day"
locale = "en-GB"
show_as_span = true
`
	result, err := LoadFromString(tomlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules := result.Config.Formatting
	rev, ok := rules["revenue"]
	if !ok {
		t.Fatal("revenue rule missing")
	}
	if rev.Prefix != "$" || !rev.Thousands || len(rev.Conditions) != 2 {
		t.Errorf("revenue rule = %+v", rev)
	}
	if rev.Conditions[0].Value != int64(1000) {
		t.Errorf("condition value = %#v", rev.Conditions[0].Value)
	}

	now := time.Now()
	if got := format.Apply(int64(5000), rev, now); got.Style != "good" || got.Text != "$5,000" {
		t.Errorf("Apply = %+v", got)
	}
	if got := format.Apply(0.1, rev, now); got.Style != "bad" {
		t.Errorf("Apply(0.1) = %+v", got)
	}

	day := rules["day"]
	if day.Type != format.TypeDate || !day.ShowAsSpan || day.Locale != "en-GB" {
		t.Errorf("day rule = %+v", day)
	}
}

func TestConfigParser_FormattingInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"type", "[formatting.a]\ntype = \"color\"", "unknown type"},
		{"operator", "[formatting.a]\n[[formatting.a.conditions]]\noperator = \"=~\"\nvalue = 1\nstyle = \"good\"", "unknown operator"},
		{"style", "[formatting.a]\ndefault_style = \"sparkly\"", "unknown default_style"},
		{"granularity", "[formatting.a]\ntype = \"date\"\ngranularity = \"week\"", "invalid granularity"},
		{"locale", "[formatting.a]\nlocale = \"xx-YY\"", "unknown locale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.toml)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestConfigParser_FileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[storage]\ndb_path = \"/tmp/gt.db\"\nretention_days = 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if result.Config.Storage.DBPath != "/tmp/gt.db" || result.Config.Storage.RetentionDays != 7 {
		t.Errorf("storage = %+v", result.Config.Storage)
	}
}

func TestConfigParser_FileLoadSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[engine\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("error = %v, want path in message", err)
	}
}

func TestConfigParser_EmptyString(t *testing.T) {
	result, err := LoadFromString("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.Report.Granularity != "day" {
		t.Error("empty string should give defaults")
	}
}

func TestConfig_AllColumns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Report.GroupBy = []string{"country", "city"}
	cfg.Report.Metrics = []string{"visits", "revenue"}
	cfg.Report.Columns = []string{"revenue", "bounce_rate"}

	got := cfg.AllColumns()
	want := []string{"country", "city", "visits", "revenue", "bounce_rate"}
	if len(got) != len(want) {
		t.Fatalf("AllColumns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AllColumns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfig_ValidateAfterOverride(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Report.Granularity = "fortnight"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "granularity") {
		t.Errorf("bad override error = %v", err)
	}
}

func TestConfigParser_AlertsSection(t *testing.T) {
	result, err := LoadFromString(`
[alerts]
system_notify = false
failure_threshold = 5
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := result.Config.Alerts
	if a.SystemNotify || a.FailureThreshold != 5 {
		t.Errorf("alerts = %+v", a)
	}
	if a.CooldownMinutes != 10 {
		t.Errorf("cooldown_minutes default lost, got %d", a.CooldownMinutes)
	}

	if _, err := LoadFromString("[alerts]\nfailure_threshold = 0\n"); err == nil {
		t.Error("zero failure_threshold should be rejected")
	}
}
