package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nixlim/grouptop/internal/alerts"
	"github.com/nixlim/grouptop/internal/config"
	"github.com/nixlim/grouptop/internal/storage"
	"github.com/nixlim/grouptop/internal/telemetry"
	"github.com/nixlim/grouptop/internal/tui"
)

func runTUI(ctx context.Context, cfg config.Config, opts *globalOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := opts.newEngine(cfg)
	if err != nil {
		return err
	}

	store, isPersistent := storage.NewStore(cfg.Storage)

	metrics := telemetry.NewMetrics()
	metrics.TrackDroppedWrites(store.DroppedWrites)

	watcher := alerts.NewWatcher(cfg.Alerts.FailureThreshold, cfg.AlertCooldown(),
		alerts.WithNotifier(alerts.NewPlatformNotifier(cfg.Alerts.SystemNotify)))

	model := tui.NewModel(cfg,
		tui.WithFetcher(client),
		tui.WithFetchRecorders(store, metricsRecorder{metrics}, watcher),
		tui.WithHistoryProvider(store),
		tui.WithCellErrorCounter(metrics),
		tui.WithAlertProvider(watcher),
		tui.WithPersistenceFlag(isPersistent),
	)
	unsubscribe := model.Session().Subscribe(metrics)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.CloseStore = store.Close

	if cfg.Telemetry.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Telemetry.MetricsAddr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "err", err)
				return err
			}
			return nil
		})
		shutdownMgr.StopMetricsServer = srv.Shutdown
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		exp, err := telemetry.NewExporter(cfg.Telemetry.OTLPEndpoint, metrics.Registry(),
			time.Duration(cfg.Telemetry.ExportIntervalSeconds)*time.Second,
			map[string]string{"report.id": cfg.Report.ID})
		if err != nil {
			log.Warn("OTLP export disabled", "err", err)
		} else {
			expCtx, stopExport := context.WithCancel(gctx)
			done := make(chan struct{})
			g.Go(func() error {
				defer close(done)
				return exp.Run(expCtx)
			})
			shutdownMgr.StopExporter = func() {
				stopExport()
				<-done
				_ = exp.Close()
			}
		}
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g.Go(func() error {
		select {
		case <-sigCh:
			p.Quit()
		case <-gctx.Done():
			p.Quit()
		}
		return nil
	})

	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	shutdownErr := shutdownMgr.Shutdown()
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

func metricsMux(m *telemetry.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// metricsRecorder feeds fetch outcomes into the Prometheus collectors.
type metricsRecorder struct {
	m *telemetry.Metrics
}

func (r metricsRecorder) RecordFetch(rec storage.FetchRecord) {
	r.m.ObserveFetch(rec)
}
