package scheduler

import (
	"sync"
	"testing"

	"github.com/benchlab/fleetsched/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost is a deterministic, RPC-free stand-in for *client.Host, so
// the placement and draining logic can be unit tested without a real
// gRPC worker.
type fakeHost struct {
	mu sync.Mutex

	name        string
	maxCapacity int
	failed      bool
	running     map[string][]*types.Job

	connectCalls         int
	disconnectCalls      int
	killExperimentResult types.Result[struct{}]
	killJobResult        types.Result[bool]
	updateResult         types.Result[struct{}]
}

func newFakeHost(name string, capacity int) *fakeHost {
	return &fakeHost{
		name:                 name,
		maxCapacity:          capacity,
		running:              make(map[string][]*types.Job),
		killExperimentResult: types.Success(struct{}{}),
		killJobResult:        types.Success(true),
		updateResult:         types.Success(struct{}{}),
	}
}

func (h *fakeHost) HostName() string { return h.name }

func (h *fakeHost) Connect() types.Result[struct{}] {
	h.connectCalls++
	return types.Success(struct{}{})
}

func (h *fakeHost) Disconnect() types.Result[struct{}] {
	h.disconnectCalls++
	return types.Success(struct{}{})
}

func (h *fakeHost) LaunchJob(job *types.Job) types.Result[struct{}] {
	h.mu.Lock()
	defer h.mu.Unlock()
	job.Status = types.JobStatusPending
	job.HostName = h.name
	h.running[job.ExperimentName] = append(h.running[job.ExperimentName], job)
	return types.Success(struct{}{})
}

func (h *fakeHost) KillJob(job *types.Job, signum int) types.Result[bool] {
	if h.killJobResult.IsSuccess() && h.killJobResult.Value() {
		job.Status = types.JobStatusKilled
	}
	return h.killJobResult
}

func (h *fakeHost) KillExperiment(experiment string) types.Result[struct{}] {
	if h.killExperimentResult.IsSuccess() {
		h.mu.Lock()
		delete(h.running, experiment)
		h.mu.Unlock()
	}
	return h.killExperimentResult
}

func (h *fakeHost) Update() types.Result[struct{}] { return h.updateResult }

func (h *fakeHost) Upgrade(additionalCapacity int) types.Result[int] {
	h.maxCapacity += additionalCapacity
	return types.Success(h.maxCapacity)
}

func (h *fakeHost) Idle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, jobs := range h.running {
		if len(jobs) > 0 {
			return false
		}
	}
	return true
}

func (h *fakeHost) Failed() bool { return h.failed }

func (h *fakeHost) Capacity() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	used := 0
	for _, jobs := range h.running {
		for _, j := range jobs {
			used += j.Demand
		}
	}
	return h.maxCapacity - used
}

func (h *fakeHost) RunningJobs(experiment string) []*types.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running[experiment]
}

func newTestJob(id, experiment string, demand int) *types.Job {
	return types.NewJob(id, experiment, "/tmp", "true", "true", "/tmp/out", demand, nil, nil)
}

func TestAddHostsSkipsDuplicateNames(t *testing.T) {
	s := NewScheduler("test", 0)
	a := newFakeHost("worker-1", 4)
	b := newFakeHost("worker-1", 8)

	s.AddHosts([]Host{a})
	s.AddHosts([]Host{b})

	assert.Len(t, s.hosts, 1)
	assert.Equal(t, 1, a.connectCalls)
	assert.Equal(t, 0, b.connectCalls)
}

func TestAddExperimentsSkipsDuplicateNames(t *testing.T) {
	s := NewScheduler("test", 0)
	e1 := types.NewExperiment("exp", "/tmp", nil)
	e2 := types.NewExperiment("exp", "/tmp", nil)

	s.AddExperiments([]*types.Experiment{e1})
	s.AddExperiments([]*types.Experiment{e2})

	assert.Len(t, s.experiments, 1)
	assert.Same(t, e1, s.experiments[0])
}

func TestPlaceJobsPacksHighestDemandFirst(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	s.hosts = []Host{host}

	small := newTestJob("small", "exp", 3)
	big := newTestJob("big", "exp", 8)
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{small, big})
	s.experiments = []*types.Experiment{exp}

	s.placeJobs()

	require.Equal(t, types.JobStatusPending, big.Status)
	assert.Equal(t, host.name, big.HostName)
	assert.Equal(t, types.JobStatusNone, small.Status, "small job should not fit once big job consumed capacity")
}

func TestPlaceJobsRepeatsUntilDry(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	s.hosts = []Host{host}

	jobs := []*types.Job{
		newTestJob("a", "exp", 4),
		newTestJob("b", "exp", 4),
		newTestJob("c", "exp", 4),
	}
	exp := types.NewExperiment("exp", "/tmp", jobs)
	s.experiments = []*types.Experiment{exp}

	s.placeJobs()

	placed := 0
	for _, j := range jobs {
		if j.Status == types.JobStatusPending {
			placed++
		}
	}
	assert.Equal(t, 2, placed, "only two 4-unit jobs fit in 10 units of capacity")
}

func TestPlaceJobsSkipsFailedHosts(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	host.failed = true
	s.hosts = []Host{host}

	job := newTestJob("a", "exp", 1)
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{job})
	s.experiments = []*types.Experiment{exp}

	s.placeJobs()

	assert.Equal(t, types.JobStatusNone, job.Status)
}

func TestDrainSignalsResetClearsLocalJob(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	job := newTestJob("a", "exp", 1)
	job.Status = types.JobStatusExited
	job.PID = 42
	job.HostName = "worker-1"
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{job})
	s.experiments = []*types.Experiment{exp}
	s.hosts = []Host{host}

	s.EnqueueSignal(types.DashboardSignal{Experiment: "exp", JobID: "a", Host: "worker-1", PID: 42, Signal: types.JobSignalReset})
	s.drainSignals()

	assert.Equal(t, types.JobStatusNone, job.Status)
}

func TestDrainSignalsResetRequiresHostResolution(t *testing.T) {
	s := NewScheduler("test", 0)
	job := newTestJob("a", "exp", 1)
	job.Status = types.JobStatusExited
	job.PID = 42
	job.HostName = "worker-1"
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{job})
	s.experiments = []*types.Experiment{exp}

	s.EnqueueSignal(types.DashboardSignal{Experiment: "exp", JobID: "a", Host: "worker-1", PID: 42, Signal: types.JobSignalReset})
	s.drainSignals()

	assert.Equal(t, types.JobStatusExited, job.Status, "RESET must not clear the job when its host fails to resolve")
}

func TestDrainSignalsRejectsStalePID(t *testing.T) {
	s := NewScheduler("test", 0)
	job := newTestJob("a", "exp", 1)
	job.Status = types.JobStatusExited
	job.PID = 42
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{job})
	s.experiments = []*types.Experiment{exp}

	s.EnqueueSignal(types.DashboardSignal{Experiment: "exp", JobID: "a", PID: 99, Signal: types.JobSignalReset})
	s.drainSignals()

	assert.NotEqual(t, types.JobStatusNone, job.Status, "stale pid request must not mutate the job")
}

func TestDrainSignalsForwardsKillToHost(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	job := newTestJob("a", "exp", 1)
	job.PID = 42
	job.HostName = "worker-1"
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{job})
	s.experiments = []*types.Experiment{exp}
	s.hosts = []Host{host}

	s.EnqueueSignal(types.DashboardSignal{Experiment: "exp", JobID: "a", Host: "worker-1", PID: 42, Signal: types.JobSignalTerm})
	s.drainSignals()

	assert.Equal(t, types.JobStatusKilled, job.Status)
}

func TestEnqueueSignalDropsPastLimit(t *testing.T) {
	s := NewScheduler("test", 0)
	for i := 0; i < maxQueuedSignals+10; i++ {
		s.EnqueueSignal(types.DashboardSignal{Experiment: "exp", JobID: "a"})
	}
	assert.Len(t, s.signals, maxQueuedSignals)
}

func TestMessageLogTrimsToCap(t *testing.T) {
	s := NewScheduler("test", 0)
	for i := 0; i < maxMessages+10; i++ {
		s.enqueueMessage("message")
	}
	assert.Len(t, s.Messages(), maxMessages)
}

func TestDrainDyingExperimentsMovesSafeToDrained(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	s.hosts = []Host{host}

	exp := types.NewExperiment("exp", "/tmp", nil)
	s.experimentsPendingRemoval = []*types.Experiment{exp}

	s.drainDyingExperiments()

	assert.Empty(t, s.experimentsPendingRemoval)
	require.Len(t, s.experimentsDrained, 1)
	assert.True(t, s.experimentsDrained[0].SafeToRemove)
}

func TestDrainDyingExperimentsStaysPendingOnFailure(t *testing.T) {
	s := NewScheduler("test", 0)
	host := newFakeHost("worker-1", 10)
	host.killExperimentResult = types.Failure[struct{}]("worker-1::kill_experiment", errAssertion("boom"))
	s.hosts = []Host{host}

	exp := types.NewExperiment("exp", "/tmp", nil)
	s.experimentsPendingRemoval = []*types.Experiment{exp}

	s.drainDyingExperiments()

	assert.Len(t, s.experimentsPendingRemoval, 1)
	assert.Empty(t, s.experimentsDrained)
}

func TestRetireIdleDrainingHostsDisconnectsIdleOnly(t *testing.T) {
	s := NewScheduler("test", 0)
	idle := newFakeHost("idle", 10)
	busy := newFakeHost("busy", 10)
	busy.running["exp"] = []*types.Job{newTestJob("a", "exp", 1)}
	s.hostsPendingRemoval = []Host{idle, busy}

	s.retireIdleDrainingHosts()

	assert.Equal(t, 1, idle.disconnectCalls)
	assert.Equal(t, 0, busy.disconnectCalls)
	require.Len(t, s.hostsPendingRemoval, 1)
	assert.Equal(t, "busy", s.hostsPendingRemoval[0].HostName())
}

func TestReapFailedHostsDropsFromBothLists(t *testing.T) {
	s := NewScheduler("test", 0)
	ok := newFakeHost("ok", 10)
	dead := newFakeHost("dead", 10)
	dead.failed = true
	s.hosts = []Host{ok, dead}
	s.hostsPendingRemoval = []Host{dead}

	s.reapFailedHosts()

	require.Len(t, s.hosts, 1)
	assert.Equal(t, "ok", s.hosts[0].HostName())
	assert.Empty(t, s.hostsPendingRemoval)
}

func TestStateReportsHostsAndJobs(t *testing.T) {
	s := NewScheduler("fleet", 0)
	host := newFakeHost("worker-1", 10)
	s.hosts = []Host{host}

	job := newTestJob("a", "exp", 1)
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{job})
	s.experiments = []*types.Experiment{exp}

	state := s.State()

	assert.Equal(t, "fleet", state.Title)
	assert.Equal(t, []string{"worker-1"}, state.Hosts)
	require.Len(t, state.Jobs, 1)
	assert.Equal(t, "a", state.Jobs[0].ID)
}

func TestHostCountsAndExperimentCounts(t *testing.T) {
	s := NewScheduler("test", 0)
	s.hosts = []Host{newFakeHost("a", 1)}
	s.hostsPendingRemoval = []Host{newFakeHost("b", 1)}
	s.experiments = []*types.Experiment{types.NewExperiment("e1", "/tmp", nil)}
	s.experimentsDrained = []*types.Experiment{types.NewExperiment("e2", "/tmp", nil)}

	active, pending := s.HostCounts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, pending)

	eActive, ePending, eDrained := s.ExperimentCounts()
	assert.Equal(t, 1, eActive)
	assert.Equal(t, 0, ePending)
	assert.Equal(t, 1, eDrained)
}

func TestJobCountsByStatus(t *testing.T) {
	s := NewScheduler("test", 0)
	running := newTestJob("a", "exp", 1)
	running.Status = types.JobStatusRunning
	exited := newTestJob("b", "exp", 1)
	exited.Status = types.JobStatusExited
	exp := types.NewExperiment("exp", "/tmp", []*types.Job{running, exited})
	s.experiments = []*types.Experiment{exp}

	counts := s.JobCounts()
	assert.Equal(t, 1, counts["RUNNING"])
	assert.Equal(t, 1, counts["EXITED"])
}

type errAssertion string

func (e errAssertion) Error() string { return string(e) }
