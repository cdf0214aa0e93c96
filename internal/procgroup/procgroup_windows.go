// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Isolate does nothing on Windows; only the worker itself is tracked.
func Isolate(*exec.Cmd) {}

// Signal can only kill on Windows. Anything but SIGKILL is dropped and
// Terminate escalates after the grace period.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	switch {
	case cmd == nil || cmd.Process == nil:
		return ErrNotStarted
	case sig != syscall.SIGKILL:
		return nil
	}
	return cmd.Process.Kill()
}
