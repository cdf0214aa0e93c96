// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import "errors"

var (
	ErrMissingBinary = errors.New("worker binary not configured")
	ErrShuttingDown  = errors.New("launcher is shutting down")
)
