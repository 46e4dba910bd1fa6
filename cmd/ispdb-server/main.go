// Command ispdb-server runs the subscriber traffic-record TCP service:
// config/logging/metrics setup, tariff load, store and sandbox
// initialization, admission guard, worker pool, and the TCP session server,
// with a side HTTP server for /health and /metrics, grounded on the
// teacher's cmd/odin-ws wiring.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"ispdb-server/internal/admission"
	"ispdb-server/internal/config"
	"ispdb-server/internal/handler"
	"ispdb-server/internal/logging"
	"ispdb-server/internal/metrics"
	"ispdb-server/internal/sandbox"
	"ispdb-server/internal/server"
	"ispdb-server/internal/shutdown"
	"ispdb-server/internal/store"
	"ispdb-server/internal/sysinfo"
	"ispdb-server/internal/tariff"
	"ispdb-server/internal/workerpool"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--help" || arg == "-h" {
			fmt.Println(config.Usage())
			return
		}
	}

	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to set GOMAXPROCS: %v\n", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	plan := &tariff.Plan{}
	if err := plan.LoadFromFile(cfg.Store.TariffFile); err != nil {
		logger.Warn("tariff file not loaded, charges will compute to zero", zap.Error(err))
	}

	sb, err := sandbox.New(cfg.Store.DataDir, cfg.Store.DataSubdir)
	if err != nil {
		logger.Fatal("failed to initialize sandbox directory", zap.Error(err))
	}

	s := store.New()
	h := handler.New(s, plan, sb)

	metricsRegistry := metrics.NewRegistry()

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	coord := shutdown.New(signalCtx, stop)

	pool := workerpool.New(cfg.Server.Workers, logger)
	defer pool.Stop()

	srv := server.New(cfg.Server, cfg.Wire, logger, h, metricsRegistry, nil, pool)

	limits := admission.DefaultLimits()
	if memLimit, err := sysinfo.MemoryLimit(); err == nil && memLimit > 0 {
		limits.MemoryLimitBytes = memLimit
		limits.MaxConnections = sysinfo.MaxConnectionsForMemory(memLimit, 0)
	}
	guard := admission.New(limits, logger, srv.ConnCounter())
	go guard.Run(coord.Context(), 15*time.Second)
	srv.SetGuard(guard)

	if err := srv.Start(coord.Context()); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- runHTTPServer(coord.Context(), cfg, metricsRegistry, logger)
	}()

	select {
	case <-coord.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
		coord.Stop()
	}

	srv.Stop()
	logger.Info("server stopped")
}

func runHTTPServer(ctx context.Context, cfg config.Config, metricsRegistry *metrics.Registry, logger *zap.Logger) error {
	if !cfg.Metrics.Enabled {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	mux.Handle("/metrics", metricsRegistry.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
