package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var once sync.Once

var (
	ConnectionLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factorywatch_connection_live",
		Help: "1 while the push channel is connected, 0 otherwise.",
	})
	ReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factorywatch_connection_reconnects_total",
		Help: "Reconnect attempts scheduled after a push channel closure.",
	})
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factorywatch_messages_total",
		Help: "Push channel messages dispatched, by envelope type.",
	}, []string{"type"})
	DecodeDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factorywatch_message_decode_drops_total",
		Help: "Push channel payloads dropped because they failed to decode.",
	})
	PatchesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factorywatch_patches_applied_total",
		Help: "Incremental job patches merged into the local store.",
	})
	PatchesUnknownTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factorywatch_patches_unknown_job_total",
		Help: "Patches discarded because the job id was not known locally.",
	})
	SnapshotFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factorywatch_snapshot_fetches_total",
		Help: "Full snapshot fetches, by outcome.",
	}, []string{"outcome"})
	ResyncsThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factorywatch_resyncs_throttled_total",
		Help: "Unknown-id resync requests suppressed by the rate limiter.",
	})
	TrackedJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factorywatch_tracked_jobs",
		Help: "Jobs currently held in the local store.",
	})
	CompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factorywatch_job_completions_total",
		Help: "Jobs first observed transitioning to done.",
	})
	WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factorywatch_webhook_deliveries_total",
		Help: "Completion webhook deliveries, by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the /metrics endpoint with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ConnectionLive,
			ReconnectsTotal,
			MessagesTotal,
			DecodeDropsTotal,
			PatchesAppliedTotal,
			PatchesUnknownTotal,
			SnapshotFetchesTotal,
			ResyncsThrottledTotal,
			TrackedJobs,
			CompletionsTotal,
			WebhookDeliveriesTotal,
		)
	})
	return promhttp.Handler()
}
