// Package probe runs best-effort TCP reachability checks in the background.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/util"
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Target is one probe request. Index is the position of the profile in the
// caller's list at submit time and may be stale by the time the result
// arrives; ID lets the caller detect that.
type Target struct {
	Index   int
	ID      string
	Addr    string
	Timeout time.Duration
}

// TargetFor builds the probe request for a profile. fallback applies when the
// profile has no ConnectTimeout.
func TargetFor(index int, p model.Profile, fallback time.Duration) Target {
	timeout := fallback
	if p.ConnectTimeout > 0 {
		timeout = time.Duration(p.ConnectTimeout) * time.Second
	}
	return Target{
		Index:   index,
		ID:      p.ID,
		Addr:    net.JoinHostPort(p.DialTarget(), strconv.Itoa(p.EffectivePort())),
		Timeout: timeout,
	}
}

type Result struct {
	Index  int
	ID     string
	Status model.Status
}

// Pool runs probes concurrently, at most cap at a time, and publishes results
// on a buffered channel. Submit never blocks the caller.
type Pool struct {
	dial    DialFunc
	sem     chan struct{}
	results chan Result
	floor   time.Duration
	wg      sync.WaitGroup
}

// NewPool creates a pool allowing concurrency simultaneous dials.
func NewPool(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = util.DefaultProbeConcurrency
	}
	d := &net.Dialer{}
	return &Pool{
		dial:    d.DialContext,
		sem:     make(chan struct{}, concurrency),
		results: make(chan Result, 256),
		floor:   util.MinProbingDisplay,
	}
}

// Submit starts probing t in the background.
func (p *Pool) Submit(t Target) {
	if t.Timeout <= 0 {
		t.Timeout = util.DefaultProbeTimeout
	}
	p.wg.Add(1)
	go p.run(t, time.Now())
}

func (p *Pool) run(t Target, submitted time.Time) {
	defer p.wg.Done()

	p.sem <- struct{}{}
	status := Check(context.Background(), p.dial, t.Addr, t.Timeout)
	<-p.sem

	if wait := p.floor - time.Since(submitted); wait > 0 {
		time.Sleep(wait)
	}
	slog.Debug("probe finished", "profile", t.ID, "addr", t.Addr, "status", status.Kind.String())
	p.results <- Result{Index: t.Index, ID: t.ID, Status: status}
}

// Results exposes the result channel for callers that select on it.
func (p *Pool) Results() <-chan Result { return p.results }

// Drain returns every result published so far without blocking.
func (p *Pool) Drain() []Result {
	var out []Result
	for {
		select {
		case r := <-p.results:
			out = append(out, r)
		default:
			return out
		}
	}
}

// Collect blocks until n results have arrived or ctx is done.
func (p *Pool) Collect(ctx context.Context, n int) ([]Result, error) {
	out := make([]Result, 0, n)
	for len(out) < n {
		select {
		case r := <-p.results:
			out = append(out, r)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}

// Wait blocks until every submitted probe has published. Results must be
// consumed concurrently once more than the channel buffer is outstanding.
func (p *Pool) Wait() { p.wg.Wait() }

// Check dials addr once and closes the connection immediately.
func Check(ctx context.Context, dial DialFunc, addr string, timeout time.Duration) model.Status {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := dial(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(ctx, err) {
			return model.Unreachable(fmt.Sprintf("connection timeout after %s", timeout.Round(time.Millisecond)))
		}
		return model.Unreachable(fmt.Sprintf("connection failed: %v", err))
	}
	_ = conn.Close()
	return model.Reachable(elapsed)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
