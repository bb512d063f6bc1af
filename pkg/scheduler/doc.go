/*
Package scheduler is the authoritative in-process state container for
the fleet: the hosts that accept jobs, the experiments that submit
them, and the bin-packing loop that places one onto the other.

# State

A Scheduler holds five slices protected by two mutexes, always
acquired experiments-then-hosts:

  - experiments / experimentsPendingRemoval / experimentsDrained
  - hosts / hostsPendingRemoval

AddHosts, AddExperiments, KillHost, and KillExperiment are the only
entry points that move entries between these lists; every other
transition happens inside a tick.

# Tick

Start runs the loop in its own goroutine, ticking every pollingSecs.
Each tick, under both locks, in order:

 1. Drain the queued dashboard signals, resolving each against live
    state and either clearing a job locally (RESET) or forwarding a
    real signal to its host.
 2. Poll every non-failed host for job status.
 3. Offer every pending-removal experiment to every healthy host's
    KillExperiment; one that every host accepted moves to drained.
 4. Disconnect and drop any pending-removal host that has gone idle.
 5. Repeatedly sort active hosts by free capacity and launch the
    highest-demand fitting job on each, until a full pass places
    nothing.
 6. Drop any host that has failed, abandoning its jobs at whatever
    status was last observed for them rather than synthesizing FAILED
    — a failed host's last report may simply be stale, not wrong.

# Queues

The dashboard signal and message queues are mutex-guarded slices, not
channels: a channel's producer (an HTTP handler goroutine) would block
once it filled, and an operator queue must never apply backpressure to
the HTTP layer that's reporting it. The signal queue is capped and
drops with a log warning past its limit; the message log is capped by
trimming its oldest entries.
*/
package scheduler
