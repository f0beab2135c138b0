//go:build !windows

// Package lifecycle holds the platform-specific shutdown plumbing shared
// by the bridge's long-running loops.
package lifecycle

import (
	"os"
	"syscall"
)

func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
