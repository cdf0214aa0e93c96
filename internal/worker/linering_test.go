// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	_, _ = r.Write([]byte("line1\n"))
	assert.Equal(t, []string{"line1"}, r.LastN(5))

	_, _ = r.Write([]byte("line2\nline3\n"))
	assert.Equal(t, []string{"line1", "line2", "line3"}, r.LastN(3))

	// Overflow
	_, _ = r.Write([]byte("line4\n"))
	assert.Equal(t, []string{"line2", "line3", "line4"}, r.LastN(3))
	assert.Equal(t, []string{"line3", "line4"}, r.LastN(2))
}

func TestLineRing_PartialWrites(t *testing.T) {
	r := NewLineRing(4)

	_, _ = r.Write([]byte("hel"))
	assert.Empty(t, r.LastN(4))

	_, _ = r.Write([]byte("lo\r\nwor"))
	assert.Equal(t, []string{"hello"}, r.LastN(4))

	r.Flush()
	assert.Equal(t, []string{"hello", "wor"}, r.LastN(4))
}

func TestLineRing_OverlongPartialIsFlushed(t *testing.T) {
	r := NewLineRing(2)
	_, _ = r.Write([]byte(strings.Repeat("x", maxPartialLine+1)))
	got := r.LastN(2)
	assert.Len(t, got, 1)
	assert.Len(t, got[0], maxPartialLine+1)
}
