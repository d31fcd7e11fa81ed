package probe

import (
	"context"
	"net"
	"time"

	"github.com/treykane/ssh-conn/internal/model"
)

// Stats summarizes repeated probes against one address.
type Stats struct {
	Sent     int
	Received int
	Min      time.Duration
	Avg      time.Duration
	Max      time.Duration
	Last     model.Status
}

// Ping probes addr count times in sequence, pausing interval between attempts.
func Ping(ctx context.Context, addr string, count int, timeout, interval time.Duration) Stats {
	d := &net.Dialer{}
	var (
		st    Stats
		total time.Duration
	)
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return st
			case <-time.After(interval):
			}
		}
		st.Sent++
		st.Last = Check(ctx, d.DialContext, addr, timeout)
		if st.Last.Kind != model.StatusReachable {
			continue
		}
		lat := st.Last.Latency
		st.Received++
		total += lat
		if st.Min == 0 || lat < st.Min {
			st.Min = lat
		}
		if lat > st.Max {
			st.Max = lat
		}
	}
	if st.Received > 0 {
		st.Avg = total / time.Duration(st.Received)
	}
	return st
}
