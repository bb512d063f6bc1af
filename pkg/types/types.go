// Package types defines the core data structures shared across the
// scheduler, the host RPC client, the worker process, and the dashboard.
package types

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusNone    JobStatus = "NONE"
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusExited  JobStatus = "EXITED"
	JobStatusKilled  JobStatus = "KILLED"
	JobStatusFailed  JobStatus = "FAILED"
)

// Running reports whether a job occupies host capacity in this status.
func (s JobStatus) Running() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Terminal reports whether a job has left the running set for good.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusExited, JobStatusKilled, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Color returns the hex color the dashboard renders for this status.
func (s JobStatus) Color() string {
	switch s {
	case JobStatusNone:
		return "#FAFAFA"
	case JobStatusPending:
		return "#F59E0B"
	case JobStatusRunning:
		return "#10B981"
	case JobStatusExited:
		return "#6B7280"
	case JobStatusKilled:
		return "#090A0D"
	case JobStatusFailed:
		return "#EF4444"
	default:
		return "#FAFAFA"
	}
}

// FileEntry is a (label, absolute path) pair describing a file a job
// produces. Used both for the stdout/stderr/aux files a job exposes and
// for the links the dashboard renders once a job has been launched.
type FileEntry struct {
	Label string
	Path  string
}

// DumpEntry is content the worker must write to disk at launch time,
// before the job's command runs.
type DumpEntry struct {
	Label   string
	Content string
	Path    string
}

// Link is a dashboard-facing (label, href) pair, populated once a job
// has been placed on a host.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Job is a single command to run on one host, with an integer demand.
// A Job is created once by its defining Experiment and lives for the
// experiment's lifetime; LaunchJob/KillJob/Clear mutate its placement
// and status fields in place.
type Job struct {
	ID               string
	ExperimentName   string
	Cwd              string
	Command          string
	ShorthandCommand string
	Outdir           string
	AuxFileIO        []FileEntry
	OptionalDump     []DumpEntry
	Demand           int

	PID      int
	HostName string
	Links    []Link
	Status   JobStatus
}

// NewJob constructs a Job in its initial NONE state, with pid/host_name
// set to their documented placeholders.
func NewJob(id, experimentName, cwd, command, shorthand, outdir string, demand int, aux []FileEntry, dump []DumpEntry) *Job {
	return &Job{
		ID:               id,
		ExperimentName:   experimentName,
		Cwd:              cwd,
		Command:          command,
		ShorthandCommand: shorthand,
		Outdir:           outdir,
		AuxFileIO:        aux,
		OptionalDump:     dump,
		Demand:           demand,
		PID:              -1,
		HostName:         "TBD",
		Status:           JobStatusNone,
	}
}

// Stdout is the job's standard output path, derived from Outdir.
func (j *Job) Stdout() string { return j.Outdir + "/stdout" }

// Stderr is the job's standard error path, derived from Outdir.
func (j *Job) Stderr() string { return j.Outdir + "/stderr" }

// FileIO returns the ordered (label, path) pairs exposed to the
// dashboard: stdout and stderr first, then any aux files.
func (j *Job) FileIO() []FileEntry {
	entries := make([]FileEntry, 0, len(j.AuxFileIO)+2)
	entries = append(entries, FileEntry{Label: "stdout", Path: j.Stdout()}, FileEntry{Label: "stderr", Path: j.Stderr()})
	entries = append(entries, j.AuxFileIO...)
	return entries
}

// Schedulable reports whether this job is still eligible for placement.
func (j *Job) Schedulable() bool { return j.Status == JobStatusNone }

// Clear resets a non-running job back to NONE, discarding its prior
// placement. Returns false (and leaves the job untouched) if the job is
// currently running, matching the RESET signal's rejection semantics.
func (j *Job) Clear() bool {
	if j.Status.Running() {
		return false
	}
	j.PID = -1
	j.HostName = "TBD"
	j.Links = nil
	j.Status = JobStatusNone
	return true
}

// JobView is the dashboard-facing projection of a Job, matching the
// JSON contract served by GET /api/state.
type JobView struct {
	ID          string `json:"id"`
	PID         int    `json:"pid"`
	Experiment  string `json:"experiment"`
	Command     string `json:"command"`
	Links       []Link `json:"links"`
	Host        string `json:"host"`
	Status      string `json:"status"`
	StatusColor string `json:"status_color"`
}

// View projects a Job into its dashboard representation.
func (j *Job) View() JobView {
	links := j.Links
	if links == nil {
		links = []Link{}
	}
	return JobView{
		ID:          j.ID,
		PID:         j.PID,
		Experiment:  j.ExperimentName,
		Command:     j.ShorthandCommand,
		Links:       links,
		Host:        j.HostName,
		Status:      string(j.Status),
		StatusColor: j.Status.Color(),
	}
}

// Experiment is a named collection of jobs submitted together. Jobs are
// appended once, at construction, and never added or removed afterward;
// only their Status transitions.
type Experiment struct {
	Name         string
	Outdir       string
	SafeToRemove bool

	jobs []*Job
}

// NewExperiment constructs an Experiment owning the given jobs, in order.
func NewExperiment(name, outdir string, jobs []*Job) *Experiment {
	return &Experiment{Name: name, Outdir: outdir, jobs: jobs}
}

// Jobs returns the experiment's jobs in construction order.
func (e *Experiment) Jobs() []*Job { return e.jobs }

// Candidate returns the best-fitting schedulable job with demand no
// greater than capacity: the eligible job with the highest demand,
// ties broken arbitrarily (stable on construction order). Returns nil
// if no job of this experiment currently fits.
func (e *Experiment) Candidate(capacity int) *Job {
	var best *Job
	for _, job := range e.jobs {
		if !job.Schedulable() || job.Demand > capacity {
			continue
		}
		if best == nil || job.Demand > best.Demand {
			best = job
		}
	}
	return best
}

func (e *Experiment) String() string {
	return fmt.Sprintf("Experiment(name=%s, jobs=%d)", e.Name, len(e.jobs))
}

// JobSignal is an operator-issued action targeting a single job.
type JobSignal string

const (
	JobSignalTerm  JobSignal = "TERM"
	JobSignalInt   JobSignal = "INT"
	JobSignalQuit  JobSignal = "QUIT"
	JobSignalKill  JobSignal = "KILL"
	JobSignalReset JobSignal = "RESET"
)

// ValidJobSignal reports whether s is one of the recognized signal names.
func ValidJobSignal(s string) bool {
	switch JobSignal(s) {
	case JobSignalTerm, JobSignalInt, JobSignalQuit, JobSignalKill, JobSignalReset:
		return true
	default:
		return false
	}
}

// SignalValue returns the OS signal number this JobSignal maps to, or
// -1 for RESET, which never reaches the worker as a real signal.
func (s JobSignal) SignalValue() int {
	switch s {
	case JobSignalTerm:
		return 15
	case JobSignalInt:
		return 2
	case JobSignalQuit:
		return 3
	case JobSignalKill:
		return 9
	default:
		return -1
	}
}

// DashboardSignal is an operator request enqueued by the dashboard's
// POST /api/job_action handler, for the scheduler loop to drain.
type DashboardSignal struct {
	Experiment string
	JobID      string
	Host       string
	PID        int
	Signal     JobSignal
}

// DashboardState is the JSON payload served by GET /api/state.
type DashboardState struct {
	Title           string    `json:"title"`
	Hosts           []string  `json:"hosts"`
	Jobs            []JobView `json:"jobs"`
	Messages        []string  `json:"messages"`
	LastUpdateEpoch float64   `json:"last_update_epoch"`
}

// Now is the single place the scheduler/dashboard convert wall-clock
// time into the epoch float the dashboard JSON contract uses.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
