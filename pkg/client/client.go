// Package client implements the scheduler-side handle for a single
// worker host: a fault-isolating gRPC client wrapper that tracks the
// jobs placed on that host.
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/benchlab/fleetsched/pkg/log"
	"github.com/benchlab/fleetsched/pkg/metrics"
	"github.com/benchlab/fleetsched/pkg/rpc"
	"github.com/benchlab/fleetsched/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const callTimeout = 10 * time.Second

// Host is the scheduler's RPC peer handle for one worker. Every
// capability method wraps its gRPC call so a raised error sets Failed
// and returns a Failure; subsequent calls on a failed host never touch
// the network.
type Host struct {
	Name           string
	Domain         string
	Port           int
	FileServerPort int
	FileDomain     string

	maxCapacity  int
	runningJobs  map[string][]*types.Job
	finishedJobs map[string][]*types.Job

	conn   *grpc.ClientConn
	client rpc.WorkerServiceClient
	failed bool
}

// NewHost constructs a Host handle in its unconnected state.
func NewHost(name, domain string, port, fileServerPort, maxCapacity int) *Host {
	return &Host{
		Name:           name,
		Domain:         domain,
		Port:           port,
		FileServerPort: fileServerPort,
		FileDomain:     fmt.Sprintf("%s:%d", domain, fileServerPort),
		maxCapacity:    maxCapacity,
		runningJobs:    make(map[string][]*types.Job),
		finishedJobs:   make(map[string][]*types.Job),
	}
}

// Failed reports whether this host has been marked failed by a prior
// operation's error.
func (h *Host) Failed() bool { return h.failed }

// HostName returns the host's name, satisfying scheduler.Host.
func (h *Host) HostName() string { return h.Name }

// MaxCapacity returns the host's current maximum capacity.
func (h *Host) MaxCapacity() int { return h.maxCapacity }

// Capacity is MaxCapacity minus the summed demand of every currently
// running job across all experiments on this host.
func (h *Host) Capacity() int {
	used := 0
	for _, jobs := range h.runningJobs {
		for _, j := range jobs {
			used += j.Demand
		}
	}
	return h.maxCapacity - used
}

// RunningJobs returns the running jobs for one experiment on this host.
func (h *Host) RunningJobs(experiment string) []*types.Job { return h.runningJobs[experiment] }

// Idle reports whether this host has no running jobs of any experiment.
func (h *Host) Idle() bool {
	for _, jobs := range h.runningJobs {
		if len(jobs) > 0 {
			return false
		}
	}
	return true
}

func (h *Host) site(op string) string { return h.Name + "::" + op }

func (h *Host) fail(op string, cause error) types.Result[struct{}] {
	h.failed = true
	metrics.HostFailuresTotal.WithLabelValues(h.Name).Inc()
	log.WithHost(h.Name).Error().Err(cause).Str("op", op).Msg("host operation failed")
	return types.Failure[struct{}](h.site(op), cause)
}

// Connect dials the worker's gRPC endpoint. The scheduler never uses
// transport security here: workers are assumed to run on a trusted
// fleet network, unlike the teacher's manager-facing API which
// requires mTLS.
func (h *Host) Connect() types.Result[struct{}] {
	if h.failed {
		return types.Failure[struct{}](h.site("connect"), fmt.Errorf("host is failed"))
	}
	addr := fmt.Sprintf("%s:%d", h.Domain, h.Port)
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rpc.DialOptions()...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return h.fail("connect", err)
	}
	h.conn = conn
	h.client = rpc.NewWorkerServiceClient(conn)
	return types.Success(struct{}{})
}

// Disconnect closes the underlying connection, if any.
func (h *Host) Disconnect() types.Result[struct{}] {
	if h.conn == nil {
		return types.Success(struct{}{})
	}
	err := h.conn.Close()
	h.conn = nil
	h.client = nil
	if err != nil {
		return h.fail("disconnect", err)
	}
	return types.Success(struct{}{})
}

// LaunchJob sends job to the worker, records its pid, builds its
// dashboard links, and files it under RunningJobs[job.ExperimentName].
func (h *Host) LaunchJob(job *types.Job) types.Result[struct{}] {
	if h.failed {
		return types.Failure[struct{}](h.site("launch_job"), fmt.Errorf("host is failed"))
	}

	dump := make([]rpc.DumpEntry, 0, len(job.OptionalDump))
	for _, d := range job.OptionalDump {
		dump = append(dump, rpc.DumpEntry{Content: d.Content, Path: d.Path})
	}
	auxPaths := make([]string, 0, len(job.AuxFileIO))
	for _, a := range job.AuxFileIO {
		auxPaths = append(auxPaths, a.Path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	timer := metrics.NewTimer()
	resp, err := h.client.LaunchJob(ctx, &rpc.LaunchJobRequest{
		Cwd:      job.Cwd,
		Command:  job.Command,
		Outdir:   job.Outdir,
		AuxPaths: auxPaths,
		Dump:     dump,
	})
	timer.ObserveDurationVec(metrics.WorkerRPCDuration, "launch_job")
	if err != nil {
		metrics.WorkerRPCFailuresTotal.WithLabelValues("launch_job").Inc()
		return h.fail("launch_job", err)
	}
	if resp.PID < 0 {
		job.Status = types.JobStatusFailed
		return types.Failure[struct{}](h.site("launch_job"), fmt.Errorf("worker reported launch failure for job %s", job.ID))
	}

	job.PID = int(resp.PID)
	job.HostName = h.Name
	job.Links = h.links(job)
	job.Status = types.JobStatusPending

	h.runningJobs[job.ExperimentName] = append(h.runningJobs[job.ExperimentName], job)
	return types.Success(struct{}{})
}

func (h *Host) links(job *types.Job) []types.Link {
	entries := job.FileIO()
	links := make([]types.Link, 0, len(entries))
	for _, e := range entries {
		href := fmt.Sprintf("/files?host=%s&path=%s", url.QueryEscape(h.FileDomain), url.QueryEscape(e.Path))
		links = append(links, types.Link{Label: e.Label, Href: href})
	}
	return links
}

// KillJob sends signum to job's process group on this host.
func (h *Host) KillJob(job *types.Job, signum int) types.Result[bool] {
	if h.failed {
		return types.Failure[bool](h.site("kill_job"), fmt.Errorf("host is failed"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	timer := metrics.NewTimer()
	resp, err := h.client.KillJob(ctx, &rpc.KillJobRequest{PID: int32(job.PID), Signum: int32(signum)})
	timer.ObserveDurationVec(metrics.WorkerRPCDuration, "kill_job")
	if err != nil {
		h.failed = true
		metrics.HostFailuresTotal.WithLabelValues(h.Name).Inc()
		metrics.WorkerRPCFailuresTotal.WithLabelValues("kill_job").Inc()
		log.WithHost(h.Name).Error().Err(err).Str("op", "kill_job").Msg("host operation failed")
		return types.Failure[bool](h.site("kill_job"), err)
	}
	if resp.Ok {
		job.Status = types.JobStatusKilled
	}
	return types.Success(resp.Ok)
}

// KillExperiment sends SIGKILL to every running job of the named
// experiment on this host. Partial per-job failure does not abort the
// remaining jobs, but the returned Result reflects it.
func (h *Host) KillExperiment(experiment string) types.Result[struct{}] {
	if h.failed {
		return types.Failure[struct{}](h.site("kill_experiment"), fmt.Errorf("host is failed"))
	}

	jobs := h.runningJobs[experiment]
	var firstErr error
	remaining := jobs[:0]
	for _, job := range jobs {
		res := h.KillJob(job, types.JobSignalKill.SignalValue())
		if res.IsFailure() {
			if firstErr == nil {
				firstErr = res.Err()
			}
			remaining = append(remaining, job)
			continue
		}
		h.finishedJobs[experiment] = append(h.finishedJobs[experiment], job)
	}
	h.runningJobs[experiment] = remaining

	if firstErr != nil {
		return types.Failure[struct{}](h.site("kill_experiment"), firstErr)
	}
	return types.Success(struct{}{})
}

// Update polls every running job's status, moving any that have gone
// terminal into FinishedJobs.
func (h *Host) Update() types.Result[struct{}] {
	if h.failed {
		return types.Failure[struct{}](h.site("update"), fmt.Errorf("host is failed"))
	}

	for experiment, jobs := range h.runningJobs {
		remaining := jobs[:0]
		for _, job := range jobs {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			timer := metrics.NewTimer()
			resp, err := h.client.JobStatus(ctx, &rpc.JobStatusRequest{PID: int32(job.PID)})
			timer.ObserveDurationVec(metrics.WorkerRPCDuration, "update")
			cancel()
			if err != nil {
				h.failed = true
				metrics.HostFailuresTotal.WithLabelValues(h.Name).Inc()
				metrics.WorkerRPCFailuresTotal.WithLabelValues("update").Inc()
				log.WithHost(h.Name).Error().Err(err).Str("op", "update").Msg("host operation failed")
				return types.Failure[struct{}](h.site("update"), err)
			}

			if resp.Status == "RUNNING" {
				job.Status = types.JobStatusRunning
				remaining = append(remaining, job)
				continue
			}

			job.Status = types.JobStatusExited
			h.finishedJobs[experiment] = append(h.finishedJobs[experiment], job)
		}
		h.runningJobs[experiment] = remaining
	}
	return types.Success(struct{}{})
}

// HostConfig is the serializable subset of a Host's configuration,
// used by the script loader to construct hosts and by Serialize to
// report current configuration back to callers.
type HostConfig struct {
	Name           string `yaml:"name"`
	Domain         string `yaml:"domain"`
	Port           int    `yaml:"port"`
	FileServerPort int    `yaml:"file_server_port"`
	MaxCapacity    int    `yaml:"max_capacity"`
}

// Serialize returns this host's configuration fields.
func (h *Host) Serialize() types.Result[HostConfig] {
	return types.Success(HostConfig{
		Name:           h.Name,
		Domain:         h.Domain,
		Port:           h.Port,
		FileServerPort: h.FileServerPort,
		MaxCapacity:    h.maxCapacity,
	})
}

// Deserialize constructs a fresh, unconnected Host from a HostConfig.
func Deserialize(cfg HostConfig) *Host {
	return NewHost(cfg.Name, cfg.Domain, cfg.Port, cfg.FileServerPort, cfg.MaxCapacity)
}

// Upgrade raises MaxCapacity. It is a local, RPC-free, lock-protected
// mutation: capacity is scheduler-side bookkeeping, so no worker call
// is needed.
func (h *Host) Upgrade(additionalCapacity int) types.Result[int] {
	if h.failed {
		return types.Failure[int](h.site("upgrade"), fmt.Errorf("host is failed"))
	}
	h.maxCapacity += additionalCapacity
	return types.Success(h.maxCapacity)
}
