package clock

import (
	"sync"
	"time"
)

// TickInterval is the cadence at which time-dependent display values are
// re-derived without waiting for new server data.
const TickInterval = time.Second

// Ticker invokes a callback at a fixed interval with the current wall-clock
// time. Its lifecycle is owned by the watcher session, not by individual
// consumers, so multiple visible views never spawn duplicate timers.
type Ticker struct {
	interval time.Duration
	fn       func(time.Time)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewTicker(interval time.Duration, fn func(time.Time)) *Ticker {
	if interval <= 0 {
		interval = TickInterval
	}
	return &Ticker{
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. Subsequent calls are no-ops.
func (t *Ticker) Start() {
	t.startOnce.Do(func() {
		go t.run()
	})
}

// Stop halts the loop and waits for it to exit. Idempotent; safe to call
// even if Start was never called.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	t.startOnce.Do(func() {
		close(t.done)
	})
	<-t.done
}

func (t *Ticker) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			t.fn(now)
		case <-t.stop:
			return
		}
	}
}
