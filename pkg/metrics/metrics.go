package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	RegistryEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vjbus_registry_entries_total",
			Help: "Total number of registry entries by status",
		},
		[]string{"status"},
	)

	RegistryWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vjbus_registry_write_duration_seconds",
			Help:    "Time taken to write a registry entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Command channel metrics
	CommandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vjbus_command_latency_seconds",
			Help:    "Command round-trip latency in seconds by worker and verb",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker", "verb"},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_commands_total",
			Help: "Total number of commands dispatched by worker, verb, and ack status",
		},
		[]string{"worker", "verb", "status"},
	)

	CommandsPending = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_commands_pending_total",
			Help: "Total number of commands that exceeded the handler time budget and went pending",
		},
		[]string{"worker", "verb"},
	)

	// Telemetry channel metrics
	TelemetryPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_telemetry_published_total",
			Help: "Total number of telemetry envelopes published by worker and stream",
		},
		[]string{"worker", "stream"},
	)

	TelemetryPublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_telemetry_publish_failures_total",
			Help: "Total number of telemetry datagrams that failed to send",
		},
		[]string{"worker"},
	)

	// Event channel metrics
	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_events_dropped_total",
			Help: "Total number of buffered events dropped for slow subscribers",
		},
		[]string{"worker"},
	)

	EventSubscribersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vjbus_event_subscribers",
			Help: "Current number of live event subscribers by worker",
		},
		[]string{"worker"},
	)

	// Process Manager metrics
	WorkersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vjbus_workers_running",
			Help: "Total number of supervised worker processes currently running",
		},
	)

	WorkerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_worker_restarts_total",
			Help: "Total number of worker restarts by worker name",
		},
		[]string{"worker"},
	)

	WorkerCrashesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vjbus_worker_crashes_total",
			Help: "Total number of worker crashes by worker name",
		},
		[]string{"worker"},
	)

	// Audio Analyzer metrics
	AudioAnalysisFPS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vjbus_audio_analysis_fps",
			Help: "Blocks analyzed per second by the audio analyzer",
		},
	)

	AudioRingOverrunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vjbus_audio_ring_overruns_total",
			Help: "Total number of capture blocks dropped due to ring buffer overrun",
		},
	)

	AudioCaptureRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vjbus_audio_capture_restarts_total",
			Help: "Total number of times the capture thread was restarted by the watchdog",
		},
	)
)

func init() {
	prometheus.MustRegister(RegistryEntriesTotal)
	prometheus.MustRegister(RegistryWriteDuration)

	prometheus.MustRegister(CommandLatency)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandsPending)

	prometheus.MustRegister(TelemetryPublishedTotal)
	prometheus.MustRegister(TelemetryPublishFailuresTotal)

	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(EventSubscribersGauge)

	prometheus.MustRegister(WorkersRunning)
	prometheus.MustRegister(WorkerRestartsTotal)
	prometheus.MustRegister(WorkerCrashesTotal)

	prometheus.MustRegister(AudioAnalysisFPS)
	prometheus.MustRegister(AudioRingOverrunsTotal)
	prometheus.MustRegister(AudioCaptureRestartsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording them to a
// histogram once the operation completes.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
