// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts worker processes in their own process group and
// tears the whole group down on shutdown.
package procgroup

import "errors"

// ErrNotStarted is returned when a signal is requested for a command that never started.
var ErrNotStarted = errors.New("process not started")
