package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Host metrics
	HostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsched_hosts_total",
			Help: "Total number of hosts by lifecycle state",
		},
		[]string{"state"}, // active, pending_removal
	)

	HostCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsched_host_capacity",
			Help: "Current reported capacity of a host",
		},
		[]string{"host"},
	)

	HostFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_host_failures_total",
			Help: "Total number of RPC failures observed against a host",
		},
		[]string{"host"},
	)

	// Experiment metrics
	ExperimentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsched_experiments_total",
			Help: "Total number of experiments by lifecycle state",
		},
		[]string{"state"}, // active, pending_removal, drained
	)

	// Job metrics
	JobsScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsched_jobs_scheduled_total",
			Help: "Total number of jobs successfully launched on a host",
		},
	)

	JobsLaunchFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsched_jobs_launch_failed_total",
			Help: "Total number of job launches that failed",
		},
	)

	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsched_jobs_total",
			Help: "Total number of jobs by status",
		},
		[]string{"status"},
	)

	JobSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_job_signals_total",
			Help: "Total number of dashboard signals handled, by signal and outcome",
		},
		[]string{"signal", "outcome"}, // outcome: success, failure
	)

	// Scheduling loop metrics
	SchedulingTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsched_scheduling_tick_duration_seconds",
			Help:    "Time taken to run one scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulingTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsched_scheduling_ticks_total",
			Help: "Total number of scheduler ticks completed",
		},
	)

	// Worker RPC metrics
	WorkerRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsched_worker_rpc_duration_seconds",
			Help:    "Duration of RPC calls from the scheduler to a worker host",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	WorkerRPCFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_worker_rpc_failures_total",
			Help: "Total number of failed RPC calls to a worker host",
		},
		[]string{"method"},
	)

	// Dashboard metrics
	DashboardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_dashboard_requests_total",
			Help: "Total number of dashboard HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	DashboardRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsched_dashboard_request_duration_seconds",
			Help:    "Dashboard HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	FileProxyBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsched_file_proxy_bytes_total",
			Help: "Total number of bytes streamed through the /files proxy",
		},
	)
)

func init() {
	prometheus.MustRegister(HostsTotal)
	prometheus.MustRegister(HostCapacity)
	prometheus.MustRegister(HostFailuresTotal)
	prometheus.MustRegister(ExperimentsTotal)
	prometheus.MustRegister(JobsScheduledTotal)
	prometheus.MustRegister(JobsLaunchFailedTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobSignalsTotal)
	prometheus.MustRegister(SchedulingTickDuration)
	prometheus.MustRegister(SchedulingTicksTotal)
	prometheus.MustRegister(WorkerRPCDuration)
	prometheus.MustRegister(WorkerRPCFailuresTotal)
	prometheus.MustRegister(DashboardRequestsTotal)
	prometheus.MustRegister(DashboardRequestDuration)
	prometheus.MustRegister(FileProxyBytesTotal)
}

// Handler returns the Prometheus HTTP handler, mounted at /metrics by
// the dashboard.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
