// -------------------------------------------------------------------------------
// Migrate Subcommand - Schema Preparation
//
// Author: Alex Freidah
//
// Creates or extends the patient table on the primary store and, when one is
// configured, the secondary. A secondary that cannot be reached is reported
// but does not fail the command; the primary always does.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"log/slog"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
	"github.com/Alaric-Jeff/Records-Information/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the patient schema on both stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), opts.cfg)
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	conn := storage.NewConnector(cfg.Database, cfg.Sync)

	// Connecting migrates the schema.
	primary, secondary, err := conn.Establish(ctx)
	if err != nil {
		return err
	}
	defer primary.Close()
	slog.Info("Primary schema ready")

	if h, ok := secondary.Get(); ok {
		defer h.Close()
		slog.Info("Secondary schema ready")
	} else if conn.SecondaryEnabled() {
		slog.Warn("Secondary schema not prepared, store unreachable")
	}
	return nil
}
