// Package worker implements the process that runs on each fleet host:
// a gRPC service launching and supervising job commands, plus an HTTP
// file server restricted to an allow-list of paths it has itself
// produced.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/benchlab/fleetsched/pkg/log"
	"github.com/benchlab/fleetsched/pkg/rpc"
)

// process tracks one launched job beyond what exec.Cmd keeps, so
// JobStatus can answer without blocking on the process a second time.
type process struct {
	cmd        *exec.Cmd
	pgid       int
	createTime string

	mu     sync.Mutex
	exited bool
	waited chan struct{}
}

// Worker implements rpc.WorkerServiceServer.
type Worker struct {
	mu        sync.Mutex
	processes map[int32]*process

	allowList *AllowList
}

// NewWorker constructs an empty Worker, ready to register on a gRPC
// server and to back a file server handler via AllowList.
func NewWorker() *Worker {
	return &Worker{
		processes: make(map[int32]*process),
		allowList: NewAllowList(),
	}
}

// AllowList returns the worker's file allow-list, shared with the HTTP
// file server so every launched job's outputs become servable.
func (w *Worker) AllowList() *AllowList { return w.allowList }

// LaunchJob creates outdir if missing, redirects stdout/stderr to files
// in it, writes any dump entries, starts command in a new session
// group via /bin/sh -c, and extends the allow-list. It never returns a
// transport error for a launch failure — callers observe failure via
// PID == -1, matching the RPC contract.
func (w *Worker) LaunchJob(ctx context.Context, req *rpc.LaunchJobRequest) (*rpc.LaunchJobResponse, error) {
	jobLog := log.WithComponent("worker")

	if err := os.MkdirAll(req.Outdir, 0o755); err != nil {
		jobLog.Error().Err(err).Str("outdir", req.Outdir).Msg("failed to create job outdir")
		return &rpc.LaunchJobResponse{PID: -1}, nil
	}

	stdoutPath := filepath.Join(req.Outdir, "stdout")
	stderrPath := filepath.Join(req.Outdir, "stderr")

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		jobLog.Error().Err(err).Msg("failed to open stdout")
		return &rpc.LaunchJobResponse{PID: -1}, nil
	}
	stderr, err := os.Create(stderrPath)
	if err != nil {
		stdout.Close()
		jobLog.Error().Err(err).Msg("failed to open stderr")
		return &rpc.LaunchJobResponse{PID: -1}, nil
	}

	for _, d := range req.Dump {
		if err := os.WriteFile(d.Path, []byte(d.Content), 0o644); err != nil {
			jobLog.Error().Err(err).Str("path", d.Path).Msg("failed to write dump entry")
			stdout.Close()
			stderr.Close()
			return &rpc.LaunchJobResponse{PID: -1}, nil
		}
	}

	cmd := exec.Command("/bin/sh", "-c", req.Command)
	cmd.Dir = req.Cwd
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		jobLog.Error().Err(err).Str("command", req.Command).Msg("failed to start job")
		return &rpc.LaunchJobResponse{PID: -1}, nil
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		pgid = pid
	}
	createTime, err := processStartTime(pid)
	if err != nil {
		jobLog.Warn().Err(err).Int("pid", pid).Msg("could not capture process create time")
	}

	p := &process{cmd: cmd, pgid: pgid, createTime: createTime, waited: make(chan struct{})}
	w.mu.Lock()
	w.processes[int32(pid)] = p
	w.mu.Unlock()

	go func() {
		cmd.Wait()
		stdout.Close()
		stderr.Close()
		p.mu.Lock()
		p.exited = true
		p.mu.Unlock()
		close(p.waited)
	}()

	w.allowList.Add(stdoutPath, stderrPath)
	w.allowList.Add(req.AuxPaths...)
	for _, d := range req.Dump {
		w.allowList.Add(d.Path)
	}

	jobLog.Info().Int("pid", pid).Str("command", req.Command).Msg("launched job")
	return &rpc.LaunchJobResponse{PID: int32(pid)}, nil
}

// KillJob sends signum to pid's process group.
func (w *Worker) KillJob(ctx context.Context, req *rpc.KillJobRequest) (*rpc.KillJobResponse, error) {
	if req.PID <= 1 {
		return &rpc.KillJobResponse{Ok: false}, nil
	}

	pgid := int(req.PID)
	w.mu.Lock()
	if p, ok := w.processes[req.PID]; ok {
		pgid = p.pgid
	}
	w.mu.Unlock()

	err := syscall.Kill(-pgid, int(req.Signum))
	return &rpc.KillJobResponse{Ok: err == nil}, nil
}

// JobStatus reports RUNNING or EXITED for pid, per the policy in
// package doc: prefer the locally-recorded process handle, fall back
// to process-group liveness, then to create-time validation, then to a
// raw liveness probe for pids this worker never launched.
func (w *Worker) JobStatus(ctx context.Context, req *rpc.JobStatusRequest) (*rpc.JobStatusResponse, error) {
	w.mu.Lock()
	p, known := w.processes[req.PID]
	w.mu.Unlock()

	if known {
		p.mu.Lock()
		exited := p.exited
		p.mu.Unlock()

		if !exited {
			return &rpc.JobStatusResponse{Status: "RUNNING"}, nil
		}
		if groupAlive(p.pgid) {
			return &rpc.JobStatusResponse{Status: "RUNNING"}, nil
		}
		if ct, err := processStartTime(int(req.PID)); err == nil && ct == p.createTime && ct != "" {
			return &rpc.JobStatusResponse{Status: "RUNNING"}, nil
		}
		return &rpc.JobStatusResponse{Status: "EXITED"}, nil
	}

	if err := syscall.Kill(int(req.PID), 0); err == nil || err == syscall.EPERM {
		return &rpc.JobStatusResponse{Status: "RUNNING"}, nil
	}
	return &rpc.JobStatusResponse{Status: "EXITED"}, nil
}

func groupAlive(pgid int) bool {
	return syscall.Kill(-pgid, 0) == nil
}

// processStartTime reads the starttime field out of /proc/<pid>/stat,
// used to distinguish a live pid from a stale one reused by the OS.
func processStartTime(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return "", err
	}
	// comm (field 2) is parenthesized and may itself contain spaces or
	// parens, so split on the last ')' rather than whitespace.
	line := strings.TrimRight(string(data), "\n")
	idx := strings.LastIndex(line, ")")
	if idx < 0 {
		return "", fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	rest := strings.Fields(line[idx+1:])
	// rest[0] is state (field 3); starttime is field 22, i.e. rest[19].
	const startTimeOffset = 22 - 3
	if len(rest) <= startTimeOffset {
		return "", fmt.Errorf("unexpected /proc/%d/stat field count", pid)
	}
	return rest[startTimeOffset], nil
}
