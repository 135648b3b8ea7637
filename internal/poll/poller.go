package poll

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/senigami/factorywatch/internal/domain"
	"github.com/senigami/factorywatch/internal/telemetry"
)

// Default cadences: polling is a safety net while the push channel is live,
// and the only source of truth while it is down.
const (
	DefaultLiveInterval = 60 * time.Second
	DefaultDownInterval = 5 * time.Second
)

// Fetcher supplies full job snapshots.
type Fetcher interface {
	Jobs(ctx context.Context) ([]domain.Job, error)
}

// Applier consumes a full snapshot, replacing its previous state.
type Applier interface {
	ReplaceAll(jobs []domain.Job)
}

// Poller schedules periodic full-snapshot refreshes. Its cadence follows the
// push channel's liveness and re-arms the moment liveness flips, so a
// long-cadence timer armed while live never delays the fast resync needed
// right after a disconnect. One fetch always runs immediately on Start.
//
// A Poller is single-use: once stopped it cannot be restarted.
type Poller struct {
	logger       *log.Logger
	fetcher      Fetcher
	store        Applier
	fetchTimeout time.Duration
	liveInterval time.Duration
	downInterval time.Duration

	mu      sync.Mutex
	live    bool
	started bool
	stopped bool

	kick  chan struct{}
	rearm chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

func New(logger *log.Logger, fetcher Fetcher, store Applier, liveInterval, downInterval time.Duration) *Poller {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if liveInterval <= 0 {
		liveInterval = DefaultLiveInterval
	}
	if downInterval <= 0 {
		downInterval = DefaultDownInterval
	}
	return &Poller{
		logger:       logger,
		fetcher:      fetcher,
		store:        store,
		fetchTimeout: 15 * time.Second,
		liveInterval: liveInterval,
		downInterval: downInterval,
		kick:         make(chan struct{}, 1),
		rearm:        make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the polling loop. It fetches once immediately and then on
// the cadence matching the current liveness.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run()
}

// Stop terminates the loop. Safe to call once started; idempotent calls are
// a no-op after the first.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done
}

// SetLive switches the cadence. The running timer is re-armed immediately so
// the new interval takes effect now, not after the old one expires.
func (p *Poller) SetLive(live bool) {
	p.mu.Lock()
	changed := p.live != live
	p.live = live
	p.mu.Unlock()

	if !changed {
		return
	}
	select {
	case p.rearm <- struct{}{}:
	default:
	}
}

// Refresh forces a fetch as soon as possible, without disturbing liveness.
func (p *Poller) Refresh() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live {
		return p.liveInterval
	}
	return p.downInterval
}

func (p *Poller) run() {
	defer close(p.done)

	p.fetch()
	timer := time.NewTimer(p.interval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			p.fetch()
			timer.Reset(p.interval())
		case <-p.kick:
			p.fetch()
			resetTimer(timer, p.interval())
		case <-p.rearm:
			resetTimer(timer, p.interval())
		case <-p.stop:
			return
		}
	}
}

// fetch pulls one full snapshot and replaces the store. Failures are logged
// and retried at the next scheduled interval; the store keeps its last-known
// state, since stale-but-present beats empty.
func (p *Poller) fetch() {
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	defer cancel()

	jobs, err := p.fetcher.Jobs(ctx)
	if err != nil {
		telemetry.SnapshotFetchesTotal.WithLabelValues("error").Inc()
		p.logger.Printf("snapshot fetch failed, keeping last-known state: %v", err)
		return
	}
	telemetry.SnapshotFetchesTotal.WithLabelValues("ok").Inc()
	p.store.ReplaceAll(jobs)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
