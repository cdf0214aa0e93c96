// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/orkestra/internal/metrics"
)

// Terminate stops a process group: SIGTERM, wait up to grace for done to
// close, then SIGKILL and wait for done again. done must be closed by
// whoever owns cmd.Wait. Returns true if SIGKILL was needed.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}

	send(cmd, syscall.SIGTERM, "SIGTERM")

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		metrics.IncProcWait("exited")
		return false
	case <-timer.C:
	}

	send(cmd, syscall.SIGKILL, "SIGKILL")
	<-done
	metrics.IncProcWait("forced")
	return true
}

func send(cmd *exec.Cmd, sig syscall.Signal, name string) {
	if err := Signal(cmd, sig); err != nil {
		metrics.IncProcTerminate(name, "error")
		return
	}
	metrics.IncProcTerminate(name, "sent")
}
