/*
Package client implements the scheduler's Host handle: a fault-isolating
gRPC client wrapper around one worker host.

# Fault Isolation

Every capability method (Connect, LaunchJob, KillJob, KillExperiment,
Update, Upgrade) wraps its underlying gRPC call in a types.Result. The
first error on any of them sets Host.Failed, after which every
subsequent call short-circuits without touching the network — the
scheduling loop filters dead hosts out by checking Failed rather than
re-attempting a doomed connection on every tick.

# Usage

	h := client.NewHost("h1", "10.0.0.5", 9090, 9091, 8)
	if res := h.Connect(); res.IsFailure() {
		log.WithHost(h.Name).Error().Msg(res.Message())
		return
	}
	if res := h.LaunchJob(job); res.IsSuccess() {
		// job.PID, job.Links, job.Status are now populated
	}
*/
package client
