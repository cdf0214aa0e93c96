// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"sync/atomic"
)

const joinCodeSpace = 1_000_000

// JoinCodes hands out six-digit join codes from a monotonically increasing
// counter starting at 000000. The counter wraps after 999999.
type JoinCodes struct {
	next atomic.Uint32
}

// Next returns the next code. Safe for concurrent use.
func (j *JoinCodes) Next() string {
	n := j.next.Add(1) - 1
	return fmt.Sprintf("%06d", n%joinCodeSpace)
}

// DefaultJoinCodes is the process-wide counter.
var DefaultJoinCodes = &JoinCodes{}
