// -------------------------------------------------------------------------------
// Serve Subcommand - HTTP API, Health Prober and Mirror
//
// Author: Alex Freidah
//
// Connects both stores, starts the secondary health prober, and serves the
// patient API until SIGINT or SIGTERM. Shutdown order: stop the prober, drain
// HTTP requests, wait for in-flight mirrors, close both stores, flush traces.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/archive"
	"github.com/Alaric-Jeff/Records-Information/internal/auth"
	"github.com/Alaric-Jeff/Records-Information/internal/config"
	"github.com/Alaric-Jeff/Records-Information/internal/server"
	"github.com/Alaric-Jeff/Records-Information/internal/storage"
	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
	"github.com/spf13/cobra"
)

const (
	rateLimitCleanupInterval = 3 * time.Minute
	rateLimitMaxIdle         = 10 * time.Minute
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the patient records HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize tracing ---
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		return err
	}

	// --- Set build info metric ---
	telemetry.BuildInfo.WithLabelValues(telemetry.Version, runtime.Version()).Set(1)

	// --- Connect stores ---
	conn := storage.NewConnector(cfg.Database, cfg.Sync)
	primary, secondary, err := conn.Establish(ctx)
	if err != nil {
		_ = shutdownTracer(context.Background())
		return err
	}
	state := storage.NewAvailabilityState(primary, secondary)
	syncEnabled := conn.SecondaryEnabled()

	// --- Start health prober ---
	proberCtx, stopProber := context.WithCancel(ctx)
	proberDone := make(chan struct{})
	if syncEnabled {
		prober := storage.NewProber(state, conn, cfg.Sync)
		go func() {
			defer close(proberDone)
			prober.Run(proberCtx)
		}()
	} else {
		close(proberDone)
	}

	// --- Wire router and reconciler ---
	repo := storage.NewPatientRepository()
	router := storage.NewRouter(state, repo, syncEnabled, cfg.Server.MirrorTimeout)

	var sink storage.ReportSink
	if cfg.Archive.Enabled {
		sink = archive.NewS3Archiver(cfg.Archive)
		slog.Info("Sync report archive enabled", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
	}
	reconciler := storage.NewReconciler(state, repo, sink).WithArchiveTimeout(cfg.Server.MirrorTimeout)

	// --- Create server ---
	srv := &server.Server{
		Patients:             router,
		Sync:                 reconciler,
		Availability:         state,
		AuthConfig:           cfg.Auth,
		SlowRequestThreshold: cfg.Server.SlowRequestThreshold,
	}
	if cfg.Telemetry.Metrics.Enabled {
		srv.MetricsPath = cfg.Telemetry.Metrics.Path
		slog.Info("Metrics endpoint enabled", "path", srv.MetricsPath)
	}
	if cfg.RateLimit.Enabled {
		srv.RateLimiter = server.NewRateLimiter(cfg.RateLimit)
		go srv.RateLimiter.RunCleanup(ctx, rateLimitCleanupInterval, rateLimitMaxIdle)
		slog.Info("Rate limiting enabled",
			"requests_per_sec", cfg.RateLimit.RequestsPerSec, "burst", cfg.RateLimit.Burst)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// --- Log startup info ---
	slog.Info("Records service starting",
		"version", telemetry.Version,
		"listen", cfg.Server.ListenAddr,
		"sync_enabled", syncEnabled,
		"secondary_available", state.Available(),
	)
	if !auth.NeedsAuth(cfg.Auth) {
		slog.Warn("Authentication is disabled for mutating requests")
	}
	if cfg.Telemetry.Tracing.Enabled {
		slog.Info("Tracing enabled",
			"endpoint", cfg.Telemetry.Tracing.Endpoint,
			"sample_rate", cfg.Telemetry.Tracing.SampleRate,
			"insecure", cfg.Telemetry.Tracing.Insecure,
		)
	}

	// --- Start server ---
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err = <-serveErr:
		slog.Error("Server error", "error", err)
	}

	// --- Graceful shutdown ---
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	stopProber()
	<-proberDone

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("HTTP server shutdown error", "error", shutdownErr)
	}

	router.Wait()

	if closeErr := primary.Close(); closeErr != nil {
		slog.Error("Primary store close error", "error", closeErr)
	}
	if h, ok := state.Secondary().Get(); ok {
		if closeErr := h.Close(); closeErr != nil {
			slog.Error("Secondary store close error", "error", closeErr)
		}
	}

	if tracerErr := shutdownTracer(shutdownCtx); tracerErr != nil {
		slog.Error("Tracer shutdown error", "error", tracerErr)
	}

	slog.Info("Server stopped")
	return err
}
