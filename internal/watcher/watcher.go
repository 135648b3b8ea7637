package watcher

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/senigami/factorywatch/internal/clock"
	"github.com/senigami/factorywatch/internal/config"
	"github.com/senigami/factorywatch/internal/domain"
	"github.com/senigami/factorywatch/internal/estimate"
	"github.com/senigami/factorywatch/internal/id"
	"github.com/senigami/factorywatch/internal/poll"
	"github.com/senigami/factorywatch/internal/ratelimit"
	"github.com/senigami/factorywatch/internal/realtime"
	"github.com/senigami/factorywatch/internal/snapshot"
	"github.com/senigami/factorywatch/internal/store"
	"github.com/senigami/factorywatch/internal/telemetry"
	"github.com/senigami/factorywatch/internal/webhook"
)

// JobView pairs a job's last-known server state with its time-refined
// display estimate.
type JobView struct {
	domain.Job
	Estimate estimate.Estimate `json:"estimate"`
}

// Watcher is one observation session against a factory server. It owns the
// push channel, the polling fallback, the job store, and the shared display
// ticker, and wires their lifecycles together so Start and Stop are the only
// entry points a caller needs.
type Watcher struct {
	logger    *log.Logger
	sessionID string

	store    *store.WatchStore
	manager  *realtime.Manager
	poller   *poll.Poller
	snap     *snapshot.Client
	limiter  *ratelimit.TokenBucket
	notifier *webhook.Client
	ticker   *clock.Ticker

	webhookEndpoint string
	fetchTimeout    time.Duration

	mu          sync.Mutex
	paused      bool
	views       []JobView
	tests       []domain.TestActivity
	resyncTimer *time.Timer
}

func New(logger *log.Logger, cfg config.Config) (*Watcher, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w := &Watcher{
		logger:          logger,
		sessionID:       id.New(),
		store:           store.New(logger),
		snap:            snapshot.NewClient(cfg.Server.URL, cfg.Server.FetchTimeout),
		limiter:         ratelimit.NewTokenBucket(cfg.Resync.Burst, cfg.Resync.RefillPerSecond),
		webhookEndpoint: cfg.Webhook.Endpoint,
		fetchTimeout:    cfg.Server.FetchTimeout,
	}

	w.notifier = webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
	})

	w.poller = poll.New(logger, w.snap, w.store, cfg.Poll.LiveInterval, cfg.Poll.DownInterval)

	manager, err := realtime.NewManager(logger, cfg.Server.URL, cfg.Server.ReconnectDelay, realtime.Handlers{
		JobPatch:     w.store.ApplyPatch,
		QueueChanged: w.poller.Refresh,
		PauseChanged: w.setPaused,
		TestProgress: w.store.SetTestProgress,
		LiveChanged:  w.onLiveChanged,
	})
	if err != nil {
		return nil, fmt.Errorf("build push channel: %w", err)
	}
	w.manager = manager

	w.store.SetResyncFunc(w.requestResync)
	w.store.OnJobTerminal(w.onJobTerminal)
	w.ticker = clock.NewTicker(clock.TickInterval, w.tick)

	return w, nil
}

// SessionID identifies this watcher session in logs and status responses.
func (w *Watcher) SessionID() string { return w.sessionID }

// Start seeds the session from the server's home payload, opens the push
// channel, and begins the polling fallback and the display ticker. A failed
// seed is not fatal; the poller's immediate first fetch covers it.
func (w *Watcher) Start(ctx context.Context) {
	seedCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	home, err := w.snap.Home(seedCtx)
	cancel()
	if err != nil {
		w.logger.Printf("home seed failed, deferring to poller: %v", err)
	} else {
		jobs := make([]domain.Job, 0, len(home.Jobs))
		for _, j := range home.Jobs {
			jobs = append(jobs, j)
		}
		w.store.ReplaceAll(jobs)
		w.setPaused(home.Paused)
		w.logger.Printf("session %s seeded with %d jobs", w.sessionID, len(jobs))
	}

	w.tick(time.Now())
	w.manager.Connect()
	w.poller.Start()
	w.ticker.Start()
}

// Stop tears the session down: display ticker, push channel, then poller,
// plus any deferred resync timer. Safe to call once; the watcher cannot be
// restarted.
func (w *Watcher) Stop() {
	w.ticker.Stop()
	w.manager.Disconnect()

	w.mu.Lock()
	if w.resyncTimer != nil {
		w.resyncTimer.Stop()
		w.resyncTimer = nil
	}
	w.mu.Unlock()

	w.poller.Stop()
}

// Live reports whether the push channel is currently open.
func (w *Watcher) Live() bool { return w.manager.Live() }

// Endpoint returns the push channel's websocket URL.
func (w *Watcher) Endpoint() string { return w.manager.Endpoint() }

// Paused reports the server's last-announced queue pause state.
func (w *Watcher) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// Views returns the job views published by the most recent tick. All
// consumers observe the same estimates until the next tick rather than each
// recomputing against its own clock.
func (w *Watcher) Views() []JobView {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]JobView, len(w.views))
	copy(out, w.views)
	return out
}

// View returns the published view for one chapter file.
func (w *Watcher) View(key string) (JobView, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, v := range w.views {
		if v.ChapterFile == key {
			return v, true
		}
	}
	return JobView{}, false
}

// TestActivities returns the side-channel activities as of the last tick.
func (w *Watcher) TestActivities() []domain.TestActivity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.TestActivity, len(w.tests))
	copy(out, w.tests)
	return out
}

// tick re-derives every job's estimate against one shared wall-clock reading
// and publishes the result.
func (w *Watcher) tick(now time.Time) {
	jobs := w.store.Jobs()
	views := make([]JobView, len(jobs))
	for i, j := range jobs {
		views[i] = JobView{Job: j, Estimate: estimate.ForJob(j, now)}
	}
	tests := w.store.TestActivities()

	w.mu.Lock()
	w.views = views
	w.tests = tests
	w.mu.Unlock()
}

func (w *Watcher) setPaused(paused bool) {
	w.mu.Lock()
	changed := w.paused != paused
	w.paused = paused
	w.mu.Unlock()
	if changed {
		w.logger.Printf("queue paused=%v", paused)
	}
}

func (w *Watcher) onLiveChanged(live bool) {
	w.poller.SetLive(live)
}

// requestResync funnels unknown-id patches into the poller, bounded by the
// token bucket so a burst of patches for a brand-new job collapses into one
// snapshot refetch. When the bucket is empty the request is not dropped: a
// single deferred refresh is armed for when the next token becomes usable.
func (w *Watcher) requestResync() {
	if w.limiter.Allow() {
		w.poller.Refresh()
		return
	}
	telemetry.ResyncsThrottledTotal.Inc()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.resyncTimer != nil {
		return
	}
	w.resyncTimer = time.AfterFunc(w.limiter.Reserve(), func() {
		w.mu.Lock()
		w.resyncTimer = nil
		w.mu.Unlock()
		w.poller.Refresh()
	})
}

func (w *Watcher) onJobTerminal(j domain.Job) {
	if w.webhookEndpoint == "" {
		return
	}

	event := webhook.EventJobCompleted
	if j.Status == domain.JobStatusError {
		event = webhook.EventJobFailed
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		payload := map[string]any{
			"session_id":   w.sessionID,
			"job_id":       j.ID,
			"chapter_file": j.ChapterFile,
			"status":       j.Status,
			"output_mp3":   j.OutputMP3,
			"error":        j.Error,
		}
		if err := w.notifier.Send(ctx, w.webhookEndpoint, event, payload); err != nil {
			telemetry.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
			w.logger.Printf("event delivery failed for job %s: %v", j.ID, err)
			return
		}
		telemetry.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
	}()
}
