// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portalloc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fixedAddrListener reports a chosen port without binding it.
type fixedAddrListener struct {
	port int
}

func (l fixedAddrListener) Accept() (net.Conn, error) { return nil, errors.New("not implemented") }
func (l fixedAddrListener) Close() error              { return nil }
func (l fixedAddrListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: l.port}
}

func scriptedListen(seq ...int) ListenFunc {
	var (
		mu sync.Mutex
		i  int
	)
	return func(context.Context, string, string) (net.Listener, error) {
		mu.Lock()
		defer mu.Unlock()
		p := seq[i%len(seq)]
		i++
		return fixedAddrListener{port: p}, nil
	}
}

func TestReserve_RealKernelPort(t *testing.T) {
	a := New(Options{BindHost: "127.0.0.1"})

	port, err := a.Reserve(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, port)
	assert.Equal(t, 1, a.Pending())

	a.Release(port)
	assert.Equal(t, 0, a.Pending())
}

func TestReserve_RetriesOnCollision(t *testing.T) {
	a := New(Options{Listen: scriptedListen(5000, 5000, 5001)})

	first, err := a.Reserve(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5000, first)

	second, err := a.Reserve(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5001, second, "pending port must be skipped")
}

func TestReserve_Exhausted(t *testing.T) {
	a := New(Options{MaxAttempts: 3, Listen: scriptedListen(6000)})

	_, err := a.Reserve(context.Background())
	require.NoError(t, err)

	_, err = a.Reserve(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, ports.ErrPortsExhausted)

	a.Release(6000)
	port, err := a.Reserve(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 6000, port, "released port is reusable")
}

func TestReserve_ListenError(t *testing.T) {
	boom := errors.New("bind denied")
	a := New(Options{Listen: func(context.Context, string, string) (net.Listener, error) {
		return nil, boom
	}})

	_, err := a.Reserve(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, a.Pending())
}

func TestReserve_Canceled(t *testing.T) {
	a := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Reserve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReserve_ConcurrentDistinct(t *testing.T) {
	// Only three distinct ports on offer for twelve callers: at most three
	// may hold a reservation at once and they must differ.
	a := New(Options{MaxAttempts: 8, Listen: scriptedListen(7000, 7001, 7002)})

	var (
		mu   sync.Mutex
		got  = map[uint16]int{}
		g    errgroup.Group
		errs int
	)
	for i := 0; i < 12; i++ {
		g.Go(func() error {
			p, err := a.Reserve(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs++
				return nil
			}
			got[p]++
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, len(got), 3)
	assert.NotEmpty(t, got)
	for p, n := range got {
		assert.Equal(t, 1, n, "port %d handed out twice", p)
	}
	assert.Equal(t, 12, len(got)+errs)
}
