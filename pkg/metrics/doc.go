/*
Package metrics exposes Prometheus instrumentation for the scheduler,
the worker, and the dashboard.

# Metric Families

Host: fleetsched_hosts_total (by lifecycle state), fleetsched_host_capacity
(per host), fleetsched_host_failures_total.

Experiment: fleetsched_experiments_total (by lifecycle state).

Job: fleetsched_jobs_scheduled_total, fleetsched_jobs_launch_failed_total,
fleetsched_jobs_total (by status), fleetsched_job_signals_total (by
signal and outcome).

Scheduling loop: fleetsched_scheduling_tick_duration_seconds,
fleetsched_scheduling_ticks_total.

Worker RPC: fleetsched_worker_rpc_duration_seconds,
fleetsched_worker_rpc_failures_total — both labeled by method
(launch_job, kill_job, update).

Dashboard: fleetsched_dashboard_requests_total,
fleetsched_dashboard_request_duration_seconds,
fleetsched_file_proxy_bytes_total.

# Collector

Collector samples a StateProvider (implemented by the scheduler) on a
15 second tick and republishes gauge-valued metrics, the same way a
reconciliation loop periodically resyncs derived state rather than
updating it on every mutation. This keeps the scheduler's own tick free
of metrics-specific bookkeeping beyond incrementing the counters it
already owns (JobsScheduledTotal, SchedulingTickDuration, and so on).

# Health

HealthChecker tracks up/down status per named component (scheduler,
dashboard) and backs HealthHandler, ReadyHandler, and LivenessHandler.
The dashboard mounts none of these; its own /health route has a
separate handler.

# Usage

	metrics.JobsScheduledTotal.Inc()

	timer := metrics.NewTimer()
	// ... run one scheduling tick ...
	timer.ObserveDuration(metrics.SchedulingTickDuration)

	mux.Handle("/metrics", metrics.Handler())
*/
package metrics
