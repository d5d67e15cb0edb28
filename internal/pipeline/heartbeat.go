package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// HeartbeatFile is rewritten with a Unix timestamp on a fixed interval
// while the worker is alive, so an external monitor can tell a working job
// from a stalled one.
const HeartbeatFile = "heartbeat.txt"

type heartbeat struct {
	stop chan struct{}
	done chan struct{}
}

// startHeartbeat begins writing liveness timestamps under dir. Write
// failures are ignored; the heartbeat is best-effort by design of the
// monitor, which only looks at staleness.
func startHeartbeat(dir string, interval time.Duration) *heartbeat {
	hb := &heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(hb.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		hb.write(dir)
		for {
			select {
			case <-hb.stop:
				return
			case <-ticker.C:
				hb.write(dir)
			}
		}
	}()
	return hb
}

func (hb *heartbeat) write(dir string) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	_ = os.WriteFile(filepath.Join(dir, HeartbeatFile), []byte(ts), 0o644)
}

func (hb *heartbeat) Stop() {
	close(hb.stop)
	<-hb.done
}
