/*
Package dashboard serves the operator's browser-facing surface.

# Routes

	GET  /              single-page UI, polling /api/state every 2s
	GET  /api/state      JSON snapshot: title, hosts, jobs, messages
	GET  /health          liveness probe
	POST /api/job_action  enqueue a DashboardSignal for the scheduler
	GET  /files            proxy onto a worker's own file server
	GET  /metrics          Prometheus exposition

/files exists because browsers can't reach worker hosts directly: the
dashboard is the only address a browser needs, and every job link it
renders points back through this proxy rather than at the worker
directly. The proxy streams in fileProxyChunkSize chunks under a
10-second timeout per worker round trip, so one unreachable worker
can't hang the dashboard indefinitely.

Every route is wrapped with request count and latency metrics; route
names are fixed labels, not full paths, to keep metric cardinality
bounded.
*/
package dashboard
