package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			BaseURL:        "http://127.0.0.1:8080",
			TimeoutSeconds: 15,
			RetryAttempts:  3,
		},
		Report: ReportConfig{
			Period:      "7d",
			Granularity: "day",
		},
		Display: DisplayConfig{
			RowHeight:               1,
			BufferRows:              5,
			RefreshRateMS:           500,
			RealtimeIntervalSeconds: 10,
		},
		Storage: StorageConfig{
			DBPath:        defaultDBPath(),
			RetentionDays: 30,
		},
		Telemetry: TelemetryConfig{
			ExportIntervalSeconds: 30,
		},
		Alerts: AlertsConfig{
			SystemNotify:     true,
			FailureThreshold: 3,
			CooldownMinutes:  10,
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "grouptop", "grouptop.db")
}
