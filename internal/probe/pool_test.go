package probe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treykane/ssh-conn/internal/model"
)

func collectOne(t *testing.T, p *Pool) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Collect(ctx, 1)
	require.NoError(t, err)
	return res[0]
}

func TestPoolReachableHonorsDisplayFloor(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	p := NewPool(4)
	start := time.Now()
	p.Submit(Target{Index: 2, ID: "local", Addr: ln.Addr().String(), Timeout: time.Second})
	r := collectOne(t, p)

	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 2, r.Index)
	assert.Equal(t, "local", r.ID)
	assert.Equal(t, model.StatusReachable, r.Status.Kind)
}

func TestPoolFastFailureStillWaitsForFloor(t *testing.T) {
	p := NewPool(4)
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	start := time.Now()
	p.Submit(Target{ID: "down", Addr: "10.255.255.1:22", Timeout: time.Second})
	r := collectOne(t, p)

	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, model.StatusUnreachable, r.Status.Kind)
	assert.Contains(t, r.Status.Reason, "connection failed")
}

func TestPoolTimeoutYieldsUnreachableWithinBound(t *testing.T) {
	p := NewPool(4)
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	start := time.Now()
	p.Submit(Target{ID: "blackhole", Addr: "10.255.255.1:22", Timeout: time.Second})
	r := collectOne(t, p)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1500*time.Millisecond)
	assert.Equal(t, model.StatusUnreachable, r.Status.Kind)
	assert.Equal(t, "connection timeout after 1s", r.Status.Reason)
}

func TestPoolCapsConcurrency(t *testing.T) {
	var active, peak int32
	p := NewPool(2)
	p.floor = 0
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, errors.New("refused")
	}
	for i := 0; i < 6; i++ {
		p.Submit(Target{Index: i, ID: "h", Addr: "x:22", Timeout: time.Second})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Collect(ctx, 6)
	require.NoError(t, err)
	p.Wait()

	assert.Len(t, res, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDrainIsNonBlocking(t *testing.T) {
	p := NewPool(1)
	assert.Empty(t, p.Drain())

	p.floor = 0
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("refused")
	}
	p.Submit(Target{Index: 0, ID: "a", Addr: "x:22", Timeout: time.Second})
	p.Wait()
	got := p.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestTargetFor(t *testing.T) {
	tg := TargetFor(3, model.Profile{ID: "db", Address: "db.internal", Port: 2222, ConnectTimeout: 2}, 5*time.Second)
	assert.Equal(t, Target{Index: 3, ID: "db", Addr: "db.internal:2222", Timeout: 2 * time.Second}, tg)

	tg = TargetFor(0, model.Profile{ID: "solo"}, 5*time.Second)
	assert.Equal(t, "solo:22", tg.Addr)
	assert.Equal(t, 5*time.Second, tg.Timeout)
}
