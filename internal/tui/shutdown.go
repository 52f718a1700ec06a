package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// ShutdownManager stops the background pieces around the UI in order.
type ShutdownManager struct {
	// DrainTimeout bounds how long the metrics server may take to finish
	// in-flight scrapes.
	DrainTimeout time.Duration

	// StopMetricsServer stops the Prometheus endpoint.
	StopMetricsServer func(ctx context.Context) error

	// StopExporter cancels the OTLP push loop and waits for its final export.
	StopExporter func()

	// CloseStore flushes pending fetch log writes and closes the database.
	CloseStore func() error

	// Cleanup runs last, e.g. closing log files.
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops the metrics endpoint first so no scrape sees a closed store,
// then the exporter, then the store, then runs cleanup.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	var firstErr error

	if sm.StopMetricsServer != nil {
		if err := sm.StopMetricsServer(ctx); err != nil {
			log.Warn("metrics server shutdown", "err", err)
			firstErr = err
		}
	}

	if sm.StopExporter != nil {
		sm.StopExporter()
	}

	if sm.CloseStore != nil {
		if err := sm.CloseStore(); err != nil {
			log.Error("closing fetch log", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}

	return firstErr
}
