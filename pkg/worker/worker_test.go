package worker

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benchlab/fleetsched/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchJobAndStatus(t *testing.T) {
	w := NewWorker()
	outdir := t.TempDir()

	resp, err := w.LaunchJob(context.Background(), &rpc.LaunchJobRequest{
		Cwd:     outdir,
		Command: "echo hello; sleep 5",
		Outdir:  outdir,
	})
	require.NoError(t, err)
	require.Greater(t, resp.PID, int32(0))

	status, err := w.JobStatus(context.Background(), &rpc.JobStatusRequest{PID: resp.PID})
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", status.Status)

	killResp, err := w.KillJob(context.Background(), &rpc.KillJobRequest{PID: resp.PID, Signum: 9})
	require.NoError(t, err)
	assert.True(t, killResp.Ok)

	require.Eventually(t, func() bool {
		s, err := w.JobStatus(context.Background(), &rpc.JobStatusRequest{PID: resp.PID})
		return err == nil && s.Status == "EXITED"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLaunchJobWritesDumpAndAllowsFiles(t *testing.T) {
	w := NewWorker()
	outdir := t.TempDir()
	dumpPath := filepath.Join(outdir, "config.json")

	resp, err := w.LaunchJob(context.Background(), &rpc.LaunchJobRequest{
		Cwd:     outdir,
		Command: "true",
		Outdir:  outdir,
		Dump:    []rpc.DumpEntry{{Content: `{"a":1}`, Path: dumpPath}},
	})
	require.NoError(t, err)
	require.Greater(t, resp.PID, int32(0))

	data, err := os.ReadFile(dumpPath)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	assert.True(t, w.AllowList().Allowed(filepath.Join(outdir, "stdout")))
	assert.True(t, w.AllowList().Allowed(filepath.Join(outdir, "stderr")))
	assert.True(t, w.AllowList().Allowed(dumpPath))
}

func TestLaunchJobFailureReturnsNegativeOne(t *testing.T) {
	w := NewWorker()

	resp, err := w.LaunchJob(context.Background(), &rpc.LaunchJobRequest{
		Cwd:     "/nonexistent/does/not/exist",
		Command: "true",
		Outdir:  "/nonexistent/does/not/exist/out",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), resp.PID)
}

func TestKillJobRejectsLowPID(t *testing.T) {
	w := NewWorker()

	resp, err := w.KillJob(context.Background(), &rpc.KillJobRequest{PID: 1, Signum: 9})
	require.NoError(t, err)
	assert.False(t, resp.Ok)

	resp, err = w.KillJob(context.Background(), &rpc.KillJobRequest{PID: 0, Signum: 9})
	require.NoError(t, err)
	assert.False(t, resp.Ok)
}

func TestJobStatusUnknownPIDFallsBackToRawProbe(t *testing.T) {
	w := NewWorker()

	status, err := w.JobStatus(context.Background(), &rpc.JobStatusRequest{PID: 1})
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", status.Status) // pid 1 (init) is always alive
}

func TestFileHandler(t *testing.T) {
	allow := NewAllowList()
	dir := t.TempDir()
	path := filepath.Join(dir, "stdout")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))
	allow.Add(path)

	handler := FileHandler(allow)

	req := httptest.NewRequest("GET", "/files?path="+path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())

	req = httptest.NewRequest("GET", "/files?path=/etc/passwd", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, 403, rec.Code)

	req = httptest.NewRequest("GET", "/files?path=relative", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)

	req = httptest.NewRequest("GET", "/files", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestFileHandlerMissingFile(t *testing.T) {
	allow := NewAllowList()
	path := "/tmp/fleetsched-test-missing-file-xyz"
	allow.Add(path)

	handler := FileHandler(allow)
	req := httptest.NewRequest("GET", "/files?path="+path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}
