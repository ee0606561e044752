// -------------------------------------------------------------------------------
// Sync Subcommand - One-Shot Secondary Backfill
//
// Author: Alex Freidah
//
// Connects both stores and copies every primary record to the secondary
// without starting the HTTP server. Exits 1 when the run cannot start or the
// primary read fails, and 2 when the run completed but some records were
// rejected.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Alaric-Jeff/Records-Information/internal/archive"
	"github.com/Alaric-Jeff/Records-Information/internal/config"
	"github.com/Alaric-Jeff/Records-Information/internal/storage"
	"github.com/spf13/cobra"
)

const exitPartialSync = 2

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy every primary record to the secondary store once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), opts.cfg)
		},
	}
}

func runSync(ctx context.Context, cfg *config.Config) error {
	conn := storage.NewConnector(cfg.Database, cfg.Sync)
	if !conn.SecondaryEnabled() {
		return &exitError{code: 1, err: storage.ErrSecondaryNotConfigured}
	}

	// --- Connect stores ---
	primary, secondary, err := conn.Establish(ctx)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer primary.Close()

	h, ok := secondary.Get()
	if !ok {
		return &exitError{code: 1, err: storage.ErrSecondaryUnavailable}
	}
	defer h.Close()

	var sink storage.ReportSink
	if cfg.Archive.Enabled {
		sink = archive.NewS3Archiver(cfg.Archive)
	}

	// --- Run reconcile ---
	state := storage.NewAvailabilityState(primary, secondary)
	report, err := storage.NewReconciler(state, storage.NewPatientRepository(), sink).
		WithArchiveTimeout(cfg.Server.MirrorTimeout).
		ReconcileAll(ctx)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	for _, line := range report.Errors() {
		slog.Warn("Record not synced", "detail", line)
	}
	slog.Info("Sync summary",
		"total_records", report.Total,
		"synced_count", report.Succeeded,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)

	if len(report.Failures) > 0 {
		return &exitError{
			code: exitPartialSync,
			err:  fmt.Errorf("%d of %d records failed to sync", len(report.Failures), report.Total),
		}
	}
	return nil
}
