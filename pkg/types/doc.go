/*
Package types defines the core data structures used throughout the
scheduler.

# Core Types

Job: a single command to run on one host, with an integer demand and a
lifecycle status (NONE, PENDING, RUNNING, EXITED, KILLED, FAILED).

Experiment: a named, ordered collection of jobs submitted together.
Jobs are appended once at construction and never added or removed
afterward — only their statuses transition.

Result: see result.go. A tagged Success/Failure value returned by every
RPC-bearing Host operation, so that a peer failure never crosses a
goroutine boundary as a panic.

# State Machine

A job's status only ever moves forward, except for an explicit Clear:

	NONE → PENDING → RUNNING → {EXITED, KILLED, FAILED}
	  ↑_______________Clear()_______________|
	           (only when not running)

# Thread Safety

Types in this package carry no internal locking. Callers — the
scheduler's experiments/hosts containers — are responsible for
synchronizing access; see pkg/scheduler.
*/
package types
