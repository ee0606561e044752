// -------------------------------------------------------------------------------
// Records Information - Patient Records Service With Cloud Mirror
//
// Author: Alex Freidah
//
// Entry point for the patient records service. The local store is
// authoritative; an optional cloud store receives best-effort mirrored writes
// and on-demand backfills. Subcommands: serve (default), sync, migrate,
// version.
// -------------------------------------------------------------------------------

package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "error:", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
