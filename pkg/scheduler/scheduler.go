// Package scheduler holds the authoritative fleet state — hosts,
// experiments, and the operator signal queue — and runs the placement
// tick that packs runnable jobs onto hosts with free capacity.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benchlab/fleetsched/pkg/log"
	"github.com/benchlab/fleetsched/pkg/metrics"
	"github.com/benchlab/fleetsched/pkg/types"
	"github.com/rs/zerolog"
)

// maxQueuedSignals bounds the dashboard signal queue. A mutex-guarded
// slice is used instead of a channel because an unbounded channel
// isn't possible in Go and a bounded one would block the HTTP handler
// goroutine that produces signals; overflow logs a warning and drops
// the signal rather than blocking the producer.
const maxQueuedSignals = 4096

// maxMessages bounds the dashboard message log to its most recent entries.
const maxMessages = 200

// Host is the subset of client.Host the scheduler depends on, so unit
// tests can substitute a fake peer instead of dialing real gRPC.
type Host interface {
	HostName() string
	Connect() types.Result[struct{}]
	Disconnect() types.Result[struct{}]
	LaunchJob(job *types.Job) types.Result[struct{}]
	KillJob(job *types.Job, signum int) types.Result[bool]
	KillExperiment(experiment string) types.Result[struct{}]
	Update() types.Result[struct{}]
	Upgrade(additionalCapacity int) types.Result[int]
	Idle() bool
	Failed() bool
	Capacity() int
	RunningJobs(experiment string) []*types.Job
}

// Scheduler is the single in-process authority over fleet state. Three
// goroutines touch it concurrently: the scheduling loop (this package's
// run()), the dashboard's HTTP handlers, and the operator console. Two
// mutexes protect it — experimentsLock and hostsLock — always acquired
// in that order, never the reverse, to preclude deadlock. Go's
// sync.Mutex is not reentrant, so every unexported helper below assumes
// its caller already holds the locks it needs; only the exported
// methods acquire them.
type Scheduler struct {
	title       string
	pollingSecs time.Duration
	logger      zerolog.Logger

	experimentsLock sync.Mutex
	experiments     []*types.Experiment
	experimentsPendingRemoval []*types.Experiment
	experimentsDrained        []*types.Experiment

	hostsLock           sync.Mutex
	hosts               []Host
	hostsPendingRemoval []Host

	signalsMu sync.Mutex
	signals   []types.DashboardSignal

	messagesMu sync.Mutex
	messages   []string

	stopCh chan struct{}
}

// NewScheduler constructs a Scheduler with no hosts or experiments yet.
func NewScheduler(title string, pollingSecs time.Duration) *Scheduler {
	return &Scheduler{
		title:       title,
		pollingSecs: pollingSecs,
		logger:      log.WithComponent("scheduler"),
		stopCh:      make(chan struct{}),
	}
}

// AddHosts connects and registers each host, skipping (with a log
// warning) any whose name collides with an active or draining host, or
// whose Connect fails.
func (s *Scheduler) AddHosts(hosts []Host) {
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()

	for _, h := range hosts {
		if s.hostNameTaken(h.HostName()) {
			s.logger.Warn().Str("host", h.HostName()).Msg("host name already registered, skipping")
			continue
		}
		if res := h.Connect(); res.IsFailure() {
			s.logger.Error().Str("host", h.HostName()).Err(res.Err()).Msg("failed to connect to host, skipping")
			continue
		}
		s.hosts = append(s.hosts, h)
	}
}

func (s *Scheduler) hostNameTaken(name string) bool {
	for _, h := range s.hosts {
		if h.HostName() == name {
			return true
		}
	}
	for _, h := range s.hostsPendingRemoval {
		if h.HostName() == name {
			return true
		}
	}
	return false
}

// AddExperiments registers each experiment, skipping (with a log
// warning) any whose name collides with an active, draining, or
// drained experiment.
func (s *Scheduler) AddExperiments(experiments []*types.Experiment) {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()

	for _, e := range experiments {
		if s.experimentNameTaken(e.Name) {
			s.logger.Warn().Str("experiment", e.Name).Msg("experiment name already registered, skipping")
			continue
		}
		s.experiments = append(s.experiments, e)
	}
}

func (s *Scheduler) experimentNameTaken(name string) bool {
	for _, groups := range [][]*types.Experiment{s.experiments, s.experimentsPendingRemoval, s.experimentsDrained} {
		for _, e := range groups {
			if e.Name == name {
				return true
			}
		}
	}
	return false
}

// KillExperiment moves the named experiment from active to
// pending-removal, where the scheduling loop will drain its running
// jobs before retiring it. A no-op with a log warning if the name is
// unknown or already draining.
func (s *Scheduler) KillExperiment(name string) {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()

	for i, e := range s.experiments {
		if e.Name == name {
			s.experiments = append(s.experiments[:i], s.experiments[i+1:]...)
			s.experimentsPendingRemoval = append(s.experimentsPendingRemoval, e)
			return
		}
	}
	s.logger.Warn().Str("experiment", name).Msg("kill_experiment: unknown or already draining")
}

// KillHost moves the named host from active to pending-removal.
func (s *Scheduler) KillHost(name string) {
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()

	for i, h := range s.hosts {
		if h.HostName() == name {
			s.hosts = append(s.hosts[:i], s.hosts[i+1:]...)
			s.hostsPendingRemoval = append(s.hostsPendingRemoval, h)
			return
		}
	}
	s.logger.Warn().Str("host", name).Msg("kill_host: unknown or already draining")
}

// EnqueueSignal files an operator signal for the scheduling loop to
// drain on its next tick. Called from dashboard HTTP handler
// goroutines, so it never blocks: once the queue reaches
// maxQueuedSignals it logs a warning and drops the signal.
func (s *Scheduler) EnqueueSignal(sig types.DashboardSignal) {
	s.signalsMu.Lock()
	defer s.signalsMu.Unlock()

	if len(s.signals) >= maxQueuedSignals {
		s.logger.Warn().Interface("signal", sig).Msg("dashboard signal queue full, dropping signal")
		return
	}
	s.signals = append(s.signals, sig)
}

func (s *Scheduler) enqueueMessage(msg string) {
	s.logger.Info().Msg(msg)

	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()
	s.messages = append(s.messages, msg)
	if over := len(s.messages) - maxMessages; over > 0 {
		s.messages = s.messages[over:]
	}
}

// Messages returns a snapshot of the recent dashboard message log,
// most-recent-last.
func (s *Scheduler) Messages() []string {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()
	out := make([]string, len(s.messages))
	copy(out, s.messages)
	return out
}

// State builds the dashboard's GET /api/state payload under both locks.
func (s *Scheduler) State() types.DashboardState {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()

	hostNames := make([]string, 0, len(s.hosts))
	for _, h := range s.hosts {
		hostNames = append(hostNames, h.HostName())
	}

	var jobs []types.JobView
	for _, e := range s.experiments {
		for _, j := range e.Jobs() {
			jobs = append(jobs, j.View())
		}
	}
	if jobs == nil {
		jobs = []types.JobView{}
	}

	return types.DashboardState{
		Title:           s.title,
		Hosts:           hostNames,
		Jobs:            jobs,
		Messages:        s.Messages(),
		LastUpdateEpoch: types.Now(),
	}
}

// Start begins the scheduling loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop signals the scheduling loop to exit at its next tick boundary.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.pollingSecs)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

// tick runs one full scheduling cycle under both locks, in the fixed
// order experimentsLock then hostsLock.
func (s *Scheduler) tick() {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.SchedulingTickDuration)
		metrics.SchedulingTicksTotal.Inc()
	}()

	s.drainSignals()
	s.pollHosts()
	s.drainDyingExperiments()
	s.retireIdleDrainingHosts()
	s.placeJobs()
	s.reapFailedHosts()
}

// drainSignals pops every queued DashboardSignal and resolves it
// against live state, translating RESET into a local job.Clear() and
// every other signal into a KillJob RPC.
func (s *Scheduler) drainSignals() {
	s.signalsMu.Lock()
	pending := s.signals
	s.signals = nil
	s.signalsMu.Unlock()

	for _, sig := range pending {
		exp := s.findExperiment(sig.Experiment)
		if exp == nil {
			s.enqueueMessage(fmt.Sprintf("Failed to resolve experiment %s for job %s", sig.Experiment, sig.JobID))
			continue
		}
		job := findJob(exp, sig.JobID)
		if job == nil {
			s.enqueueMessage(fmt.Sprintf("Failed to resolve job %s in experiment %s", sig.JobID, sig.Experiment))
			continue
		}
		if job.PID != sig.PID {
			s.enqueueMessage(fmt.Sprintf("Stale request for job %s (%s): pid %d no longer matches %d", job.ID, job.ShorthandCommand, sig.PID, job.PID))
			continue
		}
		host := s.findHost(sig.Host)
		if host == nil {
			s.enqueueMessage(fmt.Sprintf("Failed to resolve host %s for job %s", sig.Host, job.ID))
			continue
		}

		if sig.Signal == types.JobSignalReset {
			if job.Clear() {
				s.enqueueMessage(fmt.Sprintf("Success clearing %s (%s)", job.ID, job.ShorthandCommand))
			} else {
				s.enqueueMessage(fmt.Sprintf("Failed to clear job %s (%s)", job.ID, job.ShorthandCommand))
			}
			continue
		}

		signum := sig.Signal.SignalValue()
		res := host.KillJob(job, signum)
		metrics.JobSignalsTotal.WithLabelValues(string(sig.Signal), outcomeLabel(res)).Inc()
		if res.IsSuccess() && res.Value() {
			s.enqueueMessage(fmt.Sprintf("Success sending signal %d to %s (%s) running on %s", signum, job.ID, job.ShorthandCommand, host.HostName()))
		} else if res.IsSuccess() {
			s.enqueueMessage(fmt.Sprintf("Sending signal %d to %s (%s) on %s was rejected by the OS", signum, job.ID, job.ShorthandCommand, host.HostName()))
		} else {
			s.enqueueMessage(fmt.Sprintf("Sending signal %d to %s (%s) on %s raised %s", signum, job.ID, job.ShorthandCommand, host.HostName(), res.Message()))
		}
	}
}

func outcomeLabel(res types.Result[bool]) string {
	if res.IsSuccess() && res.Value() {
		return "success"
	}
	return "failure"
}

func (s *Scheduler) findExperiment(name string) *types.Experiment {
	for _, e := range s.experiments {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func findJob(e *types.Experiment, id string) *types.Job {
	for _, j := range e.Jobs() {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (s *Scheduler) findHost(name string) Host {
	for _, h := range s.hosts {
		if h.HostName() == name {
			return h
		}
	}
	return nil
}

// pollHosts calls Update on every non-failed host, active or draining.
func (s *Scheduler) pollHosts() {
	for _, h := range healthyHosts(s.allHosts()) {
		if res := h.Update(); res.IsFailure() {
			s.logger.Warn().Str("host", h.HostName()).Err(res.Err()).Msg("host update failed")
		}
	}
}

func (s *Scheduler) allHosts() []Host {
	all := make([]Host, 0, len(s.hosts)+len(s.hostsPendingRemoval))
	all = append(all, s.hosts...)
	all = append(all, s.hostsPendingRemoval...)
	return all
}

func healthyHosts(hosts []Host) []Host {
	out := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		if !h.Failed() {
			out = append(out, h)
		}
	}
	return out
}

// drainDyingExperiments asks every healthy host to kill the running
// jobs of each experiment pending removal; an experiment is safe to
// retire only once every host accepted.
func (s *Scheduler) drainDyingExperiments() {
	healthy := healthyHosts(s.allHosts())

	var stillDraining []*types.Experiment
	for _, e := range s.experimentsPendingRemoval {
		safe := true
		for _, h := range healthy {
			if res := h.KillExperiment(e.Name); res.IsFailure() {
				safe = false
				s.logger.Warn().Str("experiment", e.Name).Str("host", h.HostName()).Err(res.Err()).Msg("failed to drain experiment from host")
			}
		}
		e.SafeToRemove = safe
		if safe {
			s.experimentsDrained = append(s.experimentsDrained, e)
			s.logger.Info().Str("experiment", e.Name).Msg("experiment fully drained")
		} else {
			stillDraining = append(stillDraining, e)
		}
	}
	s.experimentsPendingRemoval = stillDraining
}

// retireIdleDrainingHosts disconnects and drops any draining host that
// has no running jobs left.
func (s *Scheduler) retireIdleDrainingHosts() {
	var stillDraining []Host
	for _, h := range s.hostsPendingRemoval {
		if !h.Failed() && h.Idle() {
			if res := h.Disconnect(); res.IsFailure() {
				s.logger.Warn().Str("host", h.HostName()).Err(res.Err()).Msg("failed to disconnect idle draining host")
			}
			continue
		}
		stillDraining = append(stillDraining, h)
	}
	s.hostsPendingRemoval = stillDraining
}

// placeJobs repeats a full pass over the sorted active hosts until a
// pass places nothing: each pass, every healthy host is offered the
// highest-demand schedulable job across all experiments that fits its
// current capacity.
func (s *Scheduler) placeJobs() {
	for {
		placed := false

		active := healthyHosts(s.hosts)
		sort.SliceStable(active, func(i, j int) bool {
			return active[i].Capacity() > active[j].Capacity()
		})

		for _, h := range active {
			candidate := bestCandidate(s.experiments, h.Capacity())
			if candidate == nil {
				continue
			}
			placed = true

			res := h.LaunchJob(candidate)
			if res.IsFailure() {
				metrics.JobsLaunchFailedTotal.Inc()
				s.logger.Warn().Str("host", h.HostName()).Str("job", candidate.ID).Err(res.Err()).Msg("failed to launch job")
				continue
			}
			metrics.JobsScheduledTotal.Inc()
			s.logger.Info().Str("host", h.HostName()).Str("job", candidate.ID).Str("experiment", candidate.ExperimentName).Int("demand", candidate.Demand).Msg("launched job")
		}

		if !placed {
			return
		}
	}
}

// bestCandidate returns the highest-demand schedulable job, across all
// active experiments, whose demand fits within capacity.
func bestCandidate(experiments []*types.Experiment, capacity int) *types.Job {
	var best *types.Job
	for _, e := range experiments {
		candidate := e.Candidate(capacity)
		if candidate == nil {
			continue
		}
		if best == nil || candidate.Demand > best.Demand {
			best = candidate
		}
	}
	return best
}

// reapFailedHosts drops every host marked Failed from both the active
// and draining lists. Its jobs are abandoned: per the documented open
// question, their status is left at its last observed value rather
// than synthesized to FAILED, but every abandoned job ID is logged so
// the gap is at least observable.
func (s *Scheduler) reapFailedHosts() {
	s.hosts = s.reapFrom(s.hosts)
	s.hostsPendingRemoval = s.reapFrom(s.hostsPendingRemoval)
}

func (s *Scheduler) reapFrom(hosts []Host) []Host {
	kept := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		if !h.Failed() {
			kept = append(kept, h)
			continue
		}
		s.logAbandonedJobs(h)
	}
	return kept
}

func (s *Scheduler) logAbandonedJobs(h Host) {
	var abandoned []string
	for _, groups := range [][]*types.Experiment{s.experiments, s.experimentsPendingRemoval, s.experimentsDrained} {
		for _, e := range groups {
			for _, j := range h.RunningJobs(e.Name) {
				abandoned = append(abandoned, j.ID)
			}
		}
	}
	s.logger.Warn().Str("host", h.HostName()).Strs("abandoned_jobs", abandoned).Msg("host failed, abandoning its jobs at last observed status")
}

// HostNames returns the names of active and draining hosts, for the
// operator console's "list host" command.
func (s *Scheduler) HostNames() (active, pendingRemoval []string) {
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()
	for _, h := range s.hosts {
		active = append(active, h.HostName())
	}
	for _, h := range s.hostsPendingRemoval {
		pendingRemoval = append(pendingRemoval, h.HostName())
	}
	return active, pendingRemoval
}

// ExperimentNames returns the names of experiments in each lifecycle
// list, for the operator console's "list experiment" command.
func (s *Scheduler) ExperimentNames() (active, pendingRemoval, drained []string) {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()
	for _, e := range s.experiments {
		active = append(active, e.Name)
	}
	for _, e := range s.experimentsPendingRemoval {
		pendingRemoval = append(pendingRemoval, e.Name)
	}
	for _, e := range s.experimentsDrained {
		drained = append(drained, e.Name)
	}
	return active, pendingRemoval, drained
}

// HostCounts implements metrics.StateProvider.
func (s *Scheduler) HostCounts() (active, pendingRemoval int) {
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()
	return len(s.hosts), len(s.hostsPendingRemoval)
}

// HostCapacities implements metrics.StateProvider.
func (s *Scheduler) HostCapacities() map[string]int {
	s.hostsLock.Lock()
	defer s.hostsLock.Unlock()
	out := make(map[string]int, len(s.hosts))
	for _, h := range s.hosts {
		out[h.HostName()] = h.Capacity()
	}
	return out
}

// ExperimentCounts implements metrics.StateProvider.
func (s *Scheduler) ExperimentCounts() (active, pendingRemoval, drained int) {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()
	return len(s.experiments), len(s.experimentsPendingRemoval), len(s.experimentsDrained)
}

// JobCounts implements metrics.StateProvider.
func (s *Scheduler) JobCounts() map[string]int {
	s.experimentsLock.Lock()
	defer s.experimentsLock.Unlock()
	counts := make(map[string]int)
	for _, e := range s.experiments {
		for _, j := range e.Jobs() {
			counts[string(j.Status)]++
		}
	}
	return counts
}
