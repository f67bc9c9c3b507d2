// PrinterPal Server
//
// Features:
// - Document upload, preview rendering, and print submission via CUPS
// - Live status over SSE (printers, queue, job counters, host vitals)
// - JSON config document with validation and atomic persistence
// - AirPrint auto-advertisement through a privileged root helper
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/airprint"
	"github.com/printerpal/printerpal/internal/api"
	"github.com/printerpal/printerpal/internal/config"
	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/events"
	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/metrics"
	"github.com/printerpal/printerpal/internal/preview"
	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("PrinterPal server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Printing config document
	cfgStore := printcfg.NewStore(cfg.ConfigPath)
	doc, err := cfgStore.Load()
	if err != nil {
		logging.Fatal("config document load failed", zap.String("path", cfg.ConfigPath), zap.Error(err))
	}
	state := printcfg.NewState(doc)

	// Upload store
	files, err := uploads.NewStore(cfg.UploadDir, cfg.FileListLimit)
	if err != nil {
		logging.Fatal("upload store init failed", zap.Error(err))
	}

	// CUPS gateway and root helper
	runner := cups.ExecRunner{}
	gateway := cups.NewGateway(runner)
	helper := airprint.NewHelper(runner, cfg.RootHelper)
	ensurer := airprint.NewAutoEnsurer(helper)

	// Best-effort AirPrint advertisement at startup.
	if doc.AirPrint.AutoEnable {
		if _, err := helper.Ensure(ctx); err != nil {
			logging.Warn("airprint ensure failed at startup", zap.Error(err))
		}
	}

	// Status aggregation and live channel
	aggregator := status.NewAggregator(gateway, state, ensurer, true)
	broadcaster := events.NewBroadcaster()

	heartbeat := time.Duration(cfg.HeartbeatSeconds) * time.Second
	watcher := uploads.NewWatcher(cfg.UploadDir, heartbeat)
	watcher.Start(ctx)

	// One nudge channel feeds the collector: watcher ticks plus local
	// mutations from the HTTP handlers.
	nudge := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher.Changed():
				poke(nudge)
			}
		}
	}()

	collector := status.NewCollector(aggregator, files, broadcaster.Publish, heartbeat, nudge)
	collector.Run(ctx)

	renderer := preview.NewRenderer(runner)

	srv := api.NewServer(files, cfgStore, state, gateway, aggregator, broadcaster, renderer, helper,
		func() { poke(nudge) })

	// Metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

func poke(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
