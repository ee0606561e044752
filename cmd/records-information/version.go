package main

import (
	"fmt"
	"runtime"

	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "records-information %s (%s)\n", telemetry.Version, runtime.Version())
		},
	}
}
