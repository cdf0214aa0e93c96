// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"bytes"
	"sync"
)

const maxPartialLine = 4096

// LineRing keeps the last N complete lines written to it. It is used as the
// worker's stderr so that exit diagnostics can include a tail.
type LineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	count   int
	partial bytes.Buffer
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 64
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer. Partial lines are buffered until their newline
// arrives; an over-long partial line is flushed as is.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			r.partial.Write(rest)
			if r.partial.Len() > maxPartialLine {
				r.push(r.partial.String())
				r.partial.Reset()
			}
			break
		}
		r.partial.Write(rest[:i])
		r.push(r.partial.String())
		r.partial.Reset()
		rest = rest[i+1:]
	}
	return len(p), nil
}

// Flush moves a trailing unterminated line into the ring.
func (r *LineRing) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.partial.Len() > 0 {
		r.push(r.partial.String())
		r.partial.Reset()
	}
}

func (r *LineRing) push(line string) {
	line = string(bytes.TrimRight([]byte(line), "\r"))
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// LastN returns up to n most recent lines in chronological order.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	out := make([]string, 0, n)
	start := (r.head - n + len(r.lines)) % len(r.lines)
	for i := 0; i < n; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}
