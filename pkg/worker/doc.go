/*
Package worker implements the process that runs on each fleet host.

A worker exposes rpc.WorkerServiceServer (LaunchJob, KillJob, JobStatus)
over gRPC, and an HTTP file server restricted to an allow-list of
stdout/stderr/aux/dump paths produced by the jobs it has launched.

# Job Lifecycle

LaunchJob starts the job's command under /bin/sh -c in a new session
(SysProcAttr.Setsid), so the whole process tree it spawns can be
signaled as one group via KillJob. A reaping goroutine calls cmd.Wait()
exactly once per job and records the exit; JobStatus answers from that
recorded state rather than polling the OS on every call. Once that
shell has exited, it falls back to a process-group liveness probe and a
/proc/<pid>/stat create-time check. A pid this worker didn't itself
launch (e.g. after a restart) gets only a raw kill(pid, 0) probe.

# File Serving

AllowList is append-only: once a job's outputs are registered they stay
servable for the life of the worker process, even after the job exits.
FileHandler never serves a path outside the allow-list, regardless of
whether the path exists on disk.
*/
package worker
